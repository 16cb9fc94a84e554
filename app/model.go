// Package app is the orchestrator: a single-threaded bubbletea state
// machine that owns the conversation transcript, gates assistant turns so
// only one is in flight, queues excess submissions, and applies events
// from every asynchronous source as they arrive on the inbound bus.
package app

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bazelment/claude-terminal/claude"
	"github.com/bazelment/claude-terminal/config"
	"github.com/bazelment/claude-terminal/sessions"
	"github.com/bazelment/claude-terminal/voice"
)

const busCapacity = 256

// turnHandle is the slice of claude.Turn the orchestrator needs; tests
// substitute fakes.
type turnHandle interface {
	Send(message string) error
	Abort()
	Events() <-chan claude.Event
}

// turnStarter creates a live turn. The default wraps claude.Start.
type turnStarter func(ctx context.Context, opts claude.Options) (turnHandle, error)

// Params configures a new Model.
type Params struct {
	Config   config.Config
	Model    string
	Continue bool
	ResumeID string
	// Command overrides the assistant binary, for tests.
	Command string

	Mailbox  *sessions.Manager
	Recorder *voice.Recorder
}

// Model is the application state. All fields are owned by the Update loop;
// nothing here is touched from another goroutine.
type Model struct {
	ctx context.Context

	model        string
	continueNext bool
	resumeID     string
	command      string

	entries   []Entry
	streamBuf strings.Builder
	queue     []string
	busy      bool
	turn      turnHandle
	turnGen   int
	usage     TokenUsage

	bus       chan tea.Msg
	startTurn turnStarter

	mailbox  *sessions.Manager
	recorder *voice.Recorder

	input      textinput.Model
	vp         viewport.Model
	spin       spinner.Model
	styles     *Styles
	md         *markdownRenderer
	history    []string
	historyIdx int
	status     string
	recording  bool

	width, height int
	ready         bool
}

// NewModel builds the orchestrator and starts the forwarder goroutines for
// the mailbox watcher and voice pipeline.
func NewModel(ctx context.Context, p Params) *Model {
	ti := textinput.New()
	ti.Placeholder = "Message, !shell command, or /help"
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	palette := ThemeByName(p.Config.Theme)
	md, _ := newMarkdownRenderer(80, palette.GlamourStyle)

	m := &Model{
		ctx:          ctx,
		model:        p.Model,
		continueNext: p.Continue,
		resumeID:     p.ResumeID,
		command:      p.Command,
		bus:          make(chan tea.Msg, busCapacity),
		mailbox:      p.Mailbox,
		recorder:     p.Recorder,
		input:        ti,
		spin:         sp,
		styles:       NewStyles(palette),
		md:           md,
		historyIdx:   -1,
	}
	m.startTurn = func(ctx context.Context, opts claude.Options) (turnHandle, error) {
		return claude.Start(ctx, opts)
	}

	m.startMailboxForwarder()
	m.startVoiceForwarder()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, waitBusMsg(m.bus))
}

// Usage returns the cumulative token counters.
func (m *Model) Usage() TokenUsage { return m.usage }

// startMailboxForwarder bridges the mailbox watcher onto the bus.
func (m *Model) startMailboxForwarder() {
	if m.mailbox == nil {
		return
	}
	incoming, err := m.mailbox.Watch(m.ctx)
	if err != nil {
		return
	}
	go func() {
		for msg := range incoming {
			if !m.toBus(PeerMsg{From: msg.From, Text: msg.Text}) {
				return
			}
		}
	}()
}

// startVoiceForwarder bridges transcription results onto the bus.
func (m *Model) startVoiceForwarder() {
	if m.recorder == nil {
		return
	}
	go func() {
		for res := range m.recorder.Results() {
			var msg tea.Msg
			if res.Err != nil {
				msg = TranscribeErrMsg{Err: res.Err}
			} else {
				msg = TranscriptMsg{Text: res.Text}
			}
			if !m.toBus(msg) {
				return
			}
		}
	}()
}

// toBus delivers one message, giving up on context cancellation. Returns
// false when the producer should stop.
func (m *Model) toBus(msg tea.Msg) bool {
	select {
	case m.bus <- msg:
		return true
	case <-m.ctx.Done():
		return false
	}
}
