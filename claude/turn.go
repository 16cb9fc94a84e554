// Package claude supervises one assistant subprocess per conversation turn.
// A Turn owns exactly one `claude` CLI process: it writes a single user
// message, decodes the streamed response line by line, and reports the
// outcome on its event channel. The caller discards the Turn when the turn
// ends and creates a fresh one for the next message.
package claude

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/bazelment/claude-terminal/internal/procattr"
	"github.com/bazelment/claude-terminal/protocol"
)

// DefaultCommand is the assistant CLI binary.
const DefaultCommand = "claude"

const eventBufferSize = 64

// Scanner limits for stdout lines. Tool results can carry whole files, so
// the ceiling is generous.
const (
	initialScanBuffer = 64 * 1024
	maxScanBuffer     = 10 * 1024 * 1024
)

// Event is the sealed union delivered on a Turn's event channel.
type Event interface {
	turnEvent()
}

// StreamEvent wraps one decoded semantic event from the subprocess.
type StreamEvent struct {
	Event protocol.Event
}

func (StreamEvent) turnEvent() {}

// Finished signals clean end-of-stream. Exactly one Finished or Failed is
// delivered per turn, always last.
type Finished struct{}

func (Finished) turnEvent() {}

// Failed signals a read failure on the subprocess output.
type Failed struct {
	Err error
}

func (Failed) turnEvent() {}

// Options configures a turn's subprocess.
type Options struct {
	// Model is passed through to --model.
	Model string
	// ResumeID resumes a specific CLI session; takes precedence over Continue.
	ResumeID string
	// Continue resumes the most recent CLI session.
	Continue bool
	// Command overrides the CLI binary, for tests. Empty means DefaultCommand.
	Command string
}

// Turn is one live assistant subprocess.
type Turn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	ctx    context.Context
	events chan Event
	wg     sync.WaitGroup
	abort  sync.Once
	sent   bool
}

// Start spawns the assistant subprocess in streaming mode. The process is
// placed in its own group and bound to ctx, so cancelling ctx reaps it even
// if Abort is never called.
func Start(ctx context.Context, opts Options) (*Turn, error) {
	bin := opts.Command
	if bin == "" {
		bin = DefaultCommand
	}

	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
		"--model", opts.Model,
	}
	switch {
	case opts.ResumeID != "":
		args = append(args, "--resume", opts.ResumeID)
	case opts.Continue:
		args = append(args, "--continue")
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	procattr.Set(cmd)
	cmd.Cancel = func() error {
		return procattr.KillGroup(cmd.Process)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", bin, err)
	}
	slog.Debug("assistant process started", "pid", cmd.Process.Pid, "model", opts.Model)

	return &Turn{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		ctx:    ctx,
		events: make(chan Event, eventBufferSize),
	}, nil
}

// Events returns the turn's event channel. It is closed after the final
// Finished or Failed event.
func (t *Turn) Events() <-chan Event {
	return t.events
}

// Send writes the user message, closes stdin to mark end of input, and
// starts the reader goroutines. It must be called exactly once.
func (t *Turn) Send(message string) error {
	if t.sent {
		return fmt.Errorf("turn already sent")
	}
	t.sent = true

	if _, err := io.WriteString(t.stdin, message+"\n"); err != nil {
		t.reap()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := t.stdin.Close(); err != nil {
		t.reap()
		return fmt.Errorf("closing stdin: %w", err)
	}

	t.wg.Add(2)
	go t.readStdout()
	go t.readStderr()
	go func() {
		t.wg.Wait()
		if err := t.cmd.Wait(); err != nil {
			slog.Debug("assistant process exited", "error", err)
		}
		close(t.events)
	}()
	return nil
}

// reap kills and waits out the subprocess when a turn dies before its
// reader goroutines start. Without it a failed Send would leave the exited
// process unwaited until the client itself exits.
func (t *Turn) reap() {
	t.Abort()
	go func() {
		_ = t.cmd.Wait()
		close(t.events)
	}()
}

// Abort forcefully terminates the subprocess. Idempotent and non-blocking;
// the reader goroutines observe the resulting EOF and wind the turn down.
func (t *Turn) Abort() {
	t.abort.Do(func() {
		slog.Debug("aborting assistant process", "pid", t.cmd.Process.Pid)
		if err := procattr.KillGroup(t.cmd.Process); err != nil {
			slog.Debug("kill failed", "error", err)
		}
	})
}

func (t *Turn) readStdout() {
	defer t.wg.Done()

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 0, initialScanBuffer), maxScanBuffer)
	dec := protocol.NewDecoder()

	for scanner.Scan() {
		for _, ev := range dec.Decode(scanner.Bytes()) {
			if !t.emit(StreamEvent{Event: ev}) {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.emit(Failed{Err: err})
		return
	}
	t.emit(Finished{})
}

// readStderr drains diagnostics. Stderr is never surfaced to the
// conversation, only logged.
func (t *Turn) readStderr() {
	defer t.wg.Done()

	scanner := bufio.NewScanner(t.stderr)
	scanner.Buffer(make([]byte, 0, initialScanBuffer), maxScanBuffer)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			slog.Debug("assistant stderr", "line", line)
		}
	}
}

// emit delivers an event, treating context cancellation as a consumer-gone
// signal. Returns false when the producer loop should stop.
func (t *Turn) emit(ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.ctx.Done():
		return false
	}
}
