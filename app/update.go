package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bazelment/claude-terminal/claude"
	"github.com/bazelment/claude-terminal/protocol"
	"github.com/bazelment/claude-terminal/shell"
)

const helpText = `Commands:
  !<cmd>           Run shell command
  /quit, /q        Exit
  /clear           Clear conversation
  /model [name]    Show or set model
  /sessions        List other running sessions
  /send <id> <m>   Send message to a session
  /broadcast <m>   Broadcast to all sessions
  /inbox           Read incoming messages
  /help            This help
  Ctrl+R           Toggle voice recording (Esc cancels)
  Ctrl+C           Interrupt assistant / clear input
  Ctrl+Q           Quit`

// Update implements tea.Model. It is the single consumer of both user
// input and the inbound bus.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case StreamEventMsg:
		if msg.Gen == m.turnGen {
			m.applyStreamEvent(msg.Event)
			m.refreshViewport()
		}
		return m, waitBusMsg(m.bus)
	case TurnFinishedMsg:
		if msg.Gen == m.turnGen {
			m.finishTurn()
			m.refreshViewport()
		}
		return m, waitBusMsg(m.bus)
	case TurnFailedMsg:
		if msg.Gen == m.turnGen {
			m.failTurn(msg.Err)
			m.refreshViewport()
		}
		return m, waitBusMsg(m.bus)
	case ShellOutputMsg:
		m.applyShellOutput(msg.Output)
		m.refreshViewport()
		return m, waitBusMsg(m.bus)
	case ShellDoneMsg:
		m.applyShellExit(msg.ExitCode)
		m.refreshViewport()
		return m, waitBusMsg(m.bus)
	case TranscriptMsg:
		m.recording = false
		m.input.SetValue(m.input.Value() + msg.Text)
		m.input.CursorEnd()
		m.status = "Transcription complete"
		return m, waitBusMsg(m.bus)
	case TranscribeErrMsg:
		m.recording = false
		m.status = fmt.Sprintf("Voice error: %v", msg.Err)
		return m, waitBusMsg(m.bus)
	case PeerMsg:
		m.entries = append(m.entries, newEntry(RoleSystem,
			TextContent{Text: fmt.Sprintf("[Session %s]: %s", msg.From, msg.Text)}))
		m.refreshViewport()
		return m, waitBusMsg(m.bus)
	}

	return m, nil
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Transcript gets everything not taken by the input box and bars.
	vpHeight := msg.Height - 6
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.vp = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = msg.Width
		m.vp.Height = vpHeight
	}
	m.input.Width = msg.Width - 6
	m.md.SetWidth(msg.Width - 4)
	m.refreshViewport()
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.recording {
		switch msg.Type {
		case tea.KeyCtrlR:
			m.stopRecording()
		case tea.KeyEscape:
			m.cancelRecording()
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlQ:
		return m, tea.Quit
	case tea.KeyCtrlC:
		if m.busy {
			m.interrupt()
			m.refreshViewport()
		} else {
			m.input.SetValue("")
		}
		return m, nil
	case tea.KeyCtrlR:
		return m, m.startRecording()
	case tea.KeyEnter:
		cmd := m.submit()
		m.refreshViewport()
		return m, cmd
	case tea.KeyUp:
		m.navigateHistory(-1)
		return m, nil
	case tea.KeyDown:
		m.navigateHistory(1)
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit routes one line of user input: shell, slash command, or message.
func (m *Model) submit() tea.Cmd {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return nil
	}
	m.history = append(m.history, line)
	m.historyIdx = -1
	m.input.SetValue("")

	switch {
	case strings.HasPrefix(line, "!"):
		m.runShell(strings.TrimSpace(line[1:]))
		return nil
	case strings.HasPrefix(line, "/"):
		return m.runSlashCommand(line)
	default:
		m.sendToAssistant(line)
		return nil
	}
}

// sendToAssistant starts a turn, or queues the message when one is active.
func (m *Model) sendToAssistant(message string) {
	if m.busy {
		m.queue = append(m.queue, message)
		m.status = fmt.Sprintf("Queued (%d pending)", len(m.queue))
		return
	}

	m.entries = append(m.entries, newEntry(RoleUser, TextContent{Text: message}))
	ctxPrefix := shellContext(m.entries)

	m.busy = true
	m.streamBuf.Reset()
	m.turnGen++

	turn, err := m.startTurn(m.ctx, claude.Options{
		Model:    m.model,
		Continue: m.continueNext,
		ResumeID: m.resumeID,
		Command:  m.command,
	})
	if err != nil {
		m.busy = false
		m.entries = append(m.entries, newEntry(RoleSystem,
			TextContent{Text: fmt.Sprintf("Error: %v", err)}))
		m.status = "Failed to start assistant"
		return
	}

	full := message
	if ctxPrefix != "" {
		full = ctxPrefix + "\n" + message
	}
	if err := turn.Send(full); err != nil {
		turn.Abort()
		m.busy = false
		m.entries = append(m.entries, newEntry(RoleSystem,
			TextContent{Text: fmt.Sprintf("Error: %v", err)}))
		return
	}

	m.turn = turn
	// Later turns continue the conversation the CLI now holds.
	m.resumeID = ""
	m.continueNext = true
	m.forwardTurnEvents(m.turnGen, turn.Events())
}

// forwardTurnEvents bridges one turn's events onto the bus, tagged with
// the turn generation so stale events are discarded after an interrupt.
func (m *Model) forwardTurnEvents(gen int, events <-chan claude.Event) {
	go func() {
		for ev := range events {
			var out tea.Msg
			switch e := ev.(type) {
			case claude.StreamEvent:
				out = StreamEventMsg{Gen: gen, Event: e.Event}
			case claude.Finished:
				out = TurnFinishedMsg{Gen: gen}
			case claude.Failed:
				out = TurnFailedMsg{Gen: gen, Err: e.Err}
			default:
				continue
			}
			if !m.toBus(out) {
				return
			}
		}
	}()
}

// applyStreamEvent folds one decoded event into the transcript state.
func (m *Model) applyStreamEvent(ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.TextEvent:
		m.streamBuf.WriteString(ev.Text)
	case protocol.ThinkingEvent:
		m.entries = append(m.entries, newEntry(RoleAssistant, ThinkingContent{Text: ev.Thinking}))
	case protocol.ToolUseEvent:
		// Prose that streamed before this call becomes its own entry
		// first, keeping transcript order.
		m.finalizeStreamBuf()
		m.entries = append(m.entries, newEntry(RoleTool, ToolUseContent{Name: ev.Name, Input: ev.Input}))
	case protocol.ToolResultEvent:
		m.entries = append(m.entries, newEntry(RoleTool,
			ToolResultContent{Name: ev.Name, Result: ev.Result, IsError: ev.IsError}))
	case protocol.UsageEvent:
		m.usage.Add(ev)
	}
}

// finalizeStreamBuf turns a non-empty streaming buffer into an assistant
// entry.
func (m *Model) finalizeStreamBuf() {
	if m.streamBuf.Len() == 0 {
		return
	}
	m.entries = append(m.entries, newEntry(RoleAssistant, TextContent{Text: m.streamBuf.String()}))
	m.streamBuf.Reset()
}

// finishTurn closes out a turn and releases the oldest queued message, if
// any, as the next turn. Releasing through sendToAssistant keeps this a
// flat call per completion; the next release happens on the next
// TurnFinishedMsg, so a long queue never stacks frames.
func (m *Model) finishTurn() {
	m.busy = false
	m.turn = nil
	m.finalizeStreamBuf()

	if len(m.queue) == 0 {
		return
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.status = fmt.Sprintf("%d more queued", len(m.queue))
	m.sendToAssistant(next)
}

// failTurn records the failure and leaves the queue untouched; the user
// resubmits explicitly.
func (m *Model) failTurn(err error) {
	m.busy = false
	m.turn = nil
	m.streamBuf.Reset()
	m.entries = append(m.entries, newEntry(RoleSystem,
		TextContent{Text: fmt.Sprintf("Error: %v", err)}))
}

// interrupt aborts the active turn. The busy flag clears immediately and
// the partially streamed buffer is discarded, not salvaged; bumping the
// generation makes any events still in flight from the old turn no-ops.
func (m *Model) interrupt() {
	if m.turn != nil {
		m.turn.Abort()
	}
	m.turn = nil
	m.busy = false
	m.streamBuf.Reset()
	m.turnGen++
	m.status = "Interrupted"
}

// runShell appends the provisional shell entry and launches the command.
func (m *Model) runShell(command string) {
	if command == "" {
		return
	}
	m.entries = append(m.entries, newEntry(RoleShell, ShellContent{Command: command}))

	go func() {
		output, code := shell.Run(m.ctx, command)
		if !m.toBus(ShellOutputMsg{Output: output}) {
			return
		}
		m.toBus(ShellDoneMsg{ExitCode: code})
	}()
}

// applyShellOutput fills in the most recent provisional shell entry.
// Without one the event has nothing to land on and is dropped.
func (m *Model) applyShellOutput(output string) {
	if i := m.lastProvisionalShell(); i >= 0 {
		sc := m.entries[i].Content.(ShellContent)
		sc.Output = output
		m.entries[i].Content = sc
	}
}

func (m *Model) applyShellExit(code int) {
	if i := m.lastProvisionalShell(); i >= 0 {
		sc := m.entries[i].Content.(ShellContent)
		sc.ExitCode = code
		sc.Done = true
		m.entries[i].Content = sc
	}
}

func (m *Model) lastProvisionalShell() int {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if sc, ok := m.entries[i].Content.(ShellContent); ok {
			if sc.Done {
				return -1
			}
			return i
		}
	}
	return -1
}

// runSlashCommand dispatches the small /command surface.
func (m *Model) runSlashCommand(line string) tea.Cmd {
	name, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	args = strings.TrimSpace(args)

	switch name {
	case "quit", "q":
		return tea.Quit
	case "clear":
		m.entries = nil
		m.vp.GotoTop()
	case "model":
		if args != "" {
			m.model = args
			m.status = "Model set to: " + args
		} else {
			m.status = "Current model: " + m.model
		}
	case "sessions":
		if m.mailbox == nil {
			m.status = "Peer sessions unavailable"
			break
		}
		m.listSessions()
	case "send":
		if m.mailbox == nil {
			m.status = "Peer sessions unavailable"
			break
		}
		target, text, ok := strings.Cut(args, " ")
		if !ok || strings.TrimSpace(text) == "" {
			m.status = "Usage: /send <session-id> <message>"
			break
		}
		if err := m.mailbox.Send(target, strings.TrimSpace(text)); err != nil {
			m.status = fmt.Sprintf("Send failed: %v", err)
		} else {
			m.status = "Sent to " + target
		}
	case "broadcast":
		if m.mailbox == nil {
			m.status = "Peer sessions unavailable"
			break
		}
		if args == "" {
			m.status = "Usage: /broadcast <message>"
			break
		}
		n, err := m.mailbox.Broadcast(args)
		if err != nil {
			m.status = fmt.Sprintf("Broadcast failed: %v", err)
		} else {
			m.status = fmt.Sprintf("Broadcast sent to %d sessions", n)
		}
	case "inbox":
		if m.mailbox == nil {
			m.status = "Peer sessions unavailable"
			break
		}
		m.drainInbox()
	case "help":
		m.entries = append(m.entries, newEntry(RoleSystem, TextContent{Text: helpText}))
	default:
		m.status = "Unknown command: /" + name
	}
	return nil
}

func (m *Model) listSessions() {
	peers, err := m.mailbox.List()
	if err != nil {
		m.status = fmt.Sprintf("Session listing failed: %v", err)
		return
	}
	if len(peers) == 0 {
		m.entries = append(m.entries, newEntry(RoleSystem, TextContent{Text: "No other active sessions"}))
		return
	}
	var b strings.Builder
	b.WriteString("Active sessions:")
	for _, p := range peers {
		fmt.Fprintf(&b, "\n  %s (%s) - %s", p.ID, p.CWD, p.Task)
	}
	m.entries = append(m.entries, newEntry(RoleSystem, TextContent{Text: b.String()}))
}

func (m *Model) drainInbox() {
	messages, err := m.mailbox.DrainInbox()
	if err != nil {
		m.status = fmt.Sprintf("Inbox read failed: %v", err)
		return
	}
	if len(messages) == 0 {
		m.status = "No messages"
		return
	}
	for _, msg := range messages {
		m.entries = append(m.entries, newEntry(RoleSystem,
			TextContent{Text: fmt.Sprintf("[%s] %s: %s", msg.Time, msg.From, msg.Text)}))
	}
}

func (m *Model) startRecording() tea.Cmd {
	if m.recorder == nil {
		m.status = "Voice recording unavailable"
		return nil
	}
	if err := m.recorder.Start(m.ctx); err != nil {
		m.status = fmt.Sprintf("Voice error: %v", err)
		return nil
	}
	m.recording = true
	m.status = "Recording... (Ctrl+R to stop, Esc to cancel)"
	return nil
}

func (m *Model) stopRecording() {
	m.recording = false
	m.status = "Transcribing..."
	m.recorder.Stop(m.ctx)
}

func (m *Model) cancelRecording() {
	m.recording = false
	m.status = "Recording cancelled"
	m.recorder.Cancel()
}

func (m *Model) navigateHistory(direction int) {
	if len(m.history) == 0 {
		return
	}
	switch {
	case direction < 0 && m.historyIdx == -1:
		m.historyIdx = len(m.history) - 1
	case direction < 0 && m.historyIdx > 0:
		m.historyIdx--
	case direction > 0 && m.historyIdx >= 0 && m.historyIdx < len(m.history)-1:
		m.historyIdx++
	case direction > 0:
		m.historyIdx = -1
	}

	if m.historyIdx == -1 {
		m.input.SetValue("")
	} else {
		m.input.SetValue(m.history[m.historyIdx])
	}
	m.input.CursorEnd()
}
