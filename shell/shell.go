// Package shell runs one-shot user commands through the system shell and
// reports their combined output and exit code.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Run executes command via `sh -c` and blocks until it exits, returning the
// captured output (stdout first, then stderr) and the exit code. Failures
// to spawn or read fold into the output with exit code 1; Run itself never
// fails, so callers can report whatever comes back.
func Run(ctx context.Context, command string) (string, int) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Sprintf("error: %v", err), 1
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Sprintf("error: %v", err), 1
	}

	if err := cmd.Start(); err != nil {
		return fmt.Sprintf("error: %v", err), 1
	}
	slog.Debug("shell command started", "pid", cmd.Process.Pid, "command", command)

	// Both pipes drain concurrently so a command that fills one while the
	// other is still open cannot wedge; the output order stays
	// stdout-then-stderr.
	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		readLines(&outBuf, stdout)
	}()
	go func() {
		defer wg.Done()
		readLines(&errBuf, stderr)
	}()
	wg.Wait()

	var out strings.Builder
	out.WriteString(outBuf.String())
	out.WriteString(errBuf.String())

	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return out.String(), exitErr.ExitCode()
		}
		return fmt.Sprintf("%serror: %v", out.String(), err), 1
	}
	return out.String(), 0
}

func readLines(out *strings.Builder, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out.WriteString(scanner.Text())
		out.WriteByte('\n')
	}
}
