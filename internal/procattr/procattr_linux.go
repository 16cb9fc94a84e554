//go:build linux

// Package procattr configures spawned subprocesses so they can be reaped
// as a group and never outlive the client.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group and, on Linux, arranges for
// SIGTERM delivery if the parent dies without cleaning up.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
