package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bazelment/claude-terminal/protocol"
)

// Bus messages. Every asynchronous producer (turn reader, shell runner,
// voice pipeline, mailbox watcher) delivers through one bounded channel of
// tea.Msg consumed by Update. Sends block when the channel is full;
// producers bail out on context cancellation instead of dropping events.

// StreamEventMsg carries one decoded assistant stream event. Gen ties the
// event to the turn that produced it so events from an aborted turn are
// ignored.
type StreamEventMsg struct {
	Gen   int
	Event protocol.Event
}

// TurnFinishedMsg reports clean end-of-stream for a turn.
type TurnFinishedMsg struct {
	Gen int
}

// TurnFailedMsg reports a read failure on a turn's output.
type TurnFailedMsg struct {
	Gen int
	Err error
}

// ShellOutputMsg carries the captured output of a shell command.
type ShellOutputMsg struct {
	Output string
}

// ShellDoneMsg carries a shell command's exit code.
type ShellDoneMsg struct {
	ExitCode int
}

// TranscriptMsg carries a finished voice transcription.
type TranscriptMsg struct {
	Text string
}

// TranscribeErrMsg reports a capture or transcription failure.
type TranscribeErrMsg struct {
	Err error
}

// PeerMsg is a message from another running session.
type PeerMsg struct {
	From string
	Text string
}

// waitBusMsg returns a command that delivers the next bus message to
// Update. The handler for each bus message re-arms it.
func waitBusMsg(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
