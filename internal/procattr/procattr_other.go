//go:build !linux

// Package procattr configures spawned subprocesses so they can be reaped
// as a group and never outlive the client.
package procattr

import (
	"os/exec"
	"syscall"
)

// Set puts the child in its own process group. Pdeathsig is Linux-only, so
// other platforms rely on explicit group kills.
func Set(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
