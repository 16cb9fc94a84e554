package app

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazelment/claude-terminal/claude"
	"github.com/bazelment/claude-terminal/config"
	"github.com/bazelment/claude-terminal/protocol"
)

type fakeTurn struct {
	sent    []string
	aborted bool
	events  chan claude.Event
}

func newFakeTurn() *fakeTurn { return &fakeTurn{events: make(chan claude.Event)} }

func (f *fakeTurn) Send(message string) error   { f.sent = append(f.sent, message); return nil }
func (f *fakeTurn) Abort()                      { f.aborted = true }
func (f *fakeTurn) Events() <-chan claude.Event { return f.events }

type failSendTurn struct{ fakeTurn }

func (f *failSendTurn) Send(string) error { return errors.New("stdin closed") }

// newTestModel wires a Model to fake turns; the returned slice collects
// every turn started, in order.
func newTestModel(t *testing.T) (*Model, *[]*fakeTurn) {
	t.Helper()
	m := NewModel(context.Background(), Params{Config: config.Default(), Model: "sonnet"})
	turns := &[]*fakeTurn{}
	m.startTurn = func(ctx context.Context, opts claude.Options) (turnHandle, error) {
		ft := newFakeTurn()
		*turns = append(*turns, ft)
		return ft, nil
	}
	return m, turns
}

func press(m *Model, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestMessageRoundTrip(t *testing.T) {
	m, turns := newTestModel(t)

	press(m, "hello")
	require.Len(t, *turns, 1)
	assert.Equal(t, []string{"hello"}, (*turns)[0].sent)
	assert.True(t, m.busy)

	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.TextEvent{Text: "Hi"}})
	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.TextEvent{Text: " there"}})
	m.Update(TurnFinishedMsg{Gen: m.turnGen})

	assert.False(t, m.busy)
	require.Len(t, m.entries, 2)
	assert.Equal(t, RoleUser, m.entries[0].Role)
	assert.Equal(t, TextContent{Text: "Hi there"}, m.entries[1].Content)
}

func TestQueueReleasesOldestFirst(t *testing.T) {
	m, turns := newTestModel(t)

	press(m, "first")
	press(m, "second")
	press(m, "third")
	require.Len(t, *turns, 1)
	assert.Equal(t, []string{"second", "third"}, m.queue)
	assert.Equal(t, "Queued (2 pending)", m.status)

	m.Update(TurnFinishedMsg{Gen: m.turnGen})
	require.Len(t, *turns, 2)
	assert.Equal(t, []string{"second"}, (*turns)[1].sent)
	assert.Equal(t, []string{"third"}, m.queue)

	m.Update(TurnFinishedMsg{Gen: m.turnGen})
	require.Len(t, *turns, 3)
	assert.Equal(t, []string{"third"}, (*turns)[2].sent)
	assert.Empty(t, m.queue)
}

func TestInterruptDiscardsPartialOutput(t *testing.T) {
	m, turns := newTestModel(t)

	press(m, "hello")
	gen := m.turnGen
	m.Update(StreamEventMsg{Gen: gen, Event: protocol.TextEvent{Text: "partial"}})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.True(t, (*turns)[0].aborted)
	assert.False(t, m.busy)
	assert.Zero(t, m.streamBuf.Len())

	// Events still in flight from the aborted turn must not land.
	m.Update(StreamEventMsg{Gen: gen, Event: protocol.TextEvent{Text: " more"}})
	m.Update(TurnFinishedMsg{Gen: gen})
	require.Len(t, m.entries, 1)
	assert.Equal(t, RoleUser, m.entries[0].Role)
	assert.Zero(t, m.streamBuf.Len())
	assert.False(t, m.busy)
}

func TestCtrlCClearsInputWhenIdle(t *testing.T) {
	m, _ := newTestModel(t)
	m.input.SetValue("half-typed")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, "", m.input.Value())
}

func TestToolCallSplitsStreamedProse(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "go")
	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.TextEvent{Text: "Let me check."}})
	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.ToolUseEvent{Name: "Bash", Input: `{"command":"ls"}`}})
	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.ToolResultEvent{Name: "Bash", Result: "main.go"}})
	m.Update(TurnFinishedMsg{Gen: m.turnGen})

	require.Len(t, m.entries, 4)
	assert.Equal(t, TextContent{Text: "Let me check."}, m.entries[1].Content)
	assert.Equal(t, ToolUseContent{Name: "Bash", Input: `{"command":"ls"}`}, m.entries[2].Content)
	assert.Equal(t, ToolResultContent{Name: "Bash", Result: "main.go"}, m.entries[3].Content)
}

func TestUsageAccumulates(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "one")
	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.UsageEvent{InputTokens: 10, OutputTokens: 5}})
	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.UsageEvent{OutputTokens: 3, CacheReadTokens: 7}})
	m.Update(TurnFinishedMsg{Gen: m.turnGen})

	assert.Equal(t, TokenUsage{Input: 10, Output: 8, CacheRead: 7}, m.Usage())
}

func TestFailureKeepsQueue(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "first")
	press(m, "second")
	m.Update(StreamEventMsg{Gen: m.turnGen, Event: protocol.TextEvent{Text: "part"}})
	m.Update(TurnFailedMsg{Gen: m.turnGen, Err: errors.New("process exited")})

	assert.False(t, m.busy)
	assert.Equal(t, []string{"second"}, m.queue)
	assert.Zero(t, m.streamBuf.Len())
	last := m.entries[len(m.entries)-1]
	assert.Equal(t, RoleSystem, last.Role)
}

func TestStartErrorReportsAndStaysIdle(t *testing.T) {
	m, _ := newTestModel(t)
	m.startTurn = func(context.Context, claude.Options) (turnHandle, error) {
		return nil, errors.New("exec: \"claude\": executable file not found")
	}

	press(m, "hello")
	assert.False(t, m.busy)
	require.Len(t, m.entries, 2)
	assert.Equal(t, RoleSystem, m.entries[1].Role)
}

func TestSendFailureAborts(t *testing.T) {
	m, _ := newTestModel(t)
	ft := &failSendTurn{fakeTurn: *newFakeTurn()}
	m.startTurn = func(context.Context, claude.Options) (turnHandle, error) { return ft, nil }

	press(m, "hello")
	assert.True(t, ft.aborted)
	assert.False(t, m.busy)
}

func TestConversationContinues(t *testing.T) {
	m, _ := newTestModel(t)
	var opts []claude.Options
	m.startTurn = func(ctx context.Context, o claude.Options) (turnHandle, error) {
		opts = append(opts, o)
		return newFakeTurn(), nil
	}

	press(m, "one")
	m.Update(TurnFinishedMsg{Gen: m.turnGen})
	press(m, "two")

	require.Len(t, opts, 2)
	assert.False(t, opts[0].Continue)
	assert.True(t, opts[1].Continue)
}

func TestShellEntryUpdatedInPlace(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "!echo hi")
	require.Len(t, m.entries, 1)

	m.Update(ShellOutputMsg{Output: "hi\n"})
	m.Update(ShellDoneMsg{ExitCode: 0})

	require.Len(t, m.entries, 1)
	sc := m.entries[0].Content.(ShellContent)
	assert.Equal(t, "echo hi", sc.Command)
	assert.Equal(t, "hi\n", sc.Output)
	assert.True(t, sc.Done)
	assert.Equal(t, 0, sc.ExitCode)
}

func TestShellContextPrefixesNextMessage(t *testing.T) {
	m, turns := newTestModel(t)
	m.entries = append(m.entries, newEntry(RoleShell,
		ShellContent{Command: "ls", Output: "main.go\n", ExitCode: 0, Done: true}))

	press(m, "what is here?")
	require.Len(t, *turns, 1)
	sent := (*turns)[0].sent[0]
	assert.Contains(t, sent, "[Recent terminal activity]")
	assert.Contains(t, sent, "$ ls")
	assert.Contains(t, sent, "what is here?")
}

func TestSlashCommands(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "/model opus")
	assert.Equal(t, "opus", m.model)

	press(m, "/model")
	assert.Equal(t, "Current model: opus", m.status)

	press(m, "/help")
	require.NotEmpty(t, m.entries)

	press(m, "/clear")
	assert.Empty(t, m.entries)

	press(m, "/nope")
	assert.Equal(t, "Unknown command: /nope", m.status)

	cmd := press(m, "/quit")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestHistoryNavigation(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "first")
	m.Update(TurnFinishedMsg{Gen: m.turnGen})
	press(m, "second")
	m.Update(TurnFinishedMsg{Gen: m.turnGen})

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "second", m.input.Value())
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, "first", m.input.Value())
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "second", m.input.Value())
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "", m.input.Value())
}
