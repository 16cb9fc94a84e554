package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.titleBar())
	b.WriteString("\n")
	b.WriteString(m.styles.Divider.Render(strings.Repeat("─", max(m.width, 0))))
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	b.WriteString(m.inputArea())
	b.WriteString("\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m *Model) titleBar() string {
	title := m.styles.Title.Render("claude-terminal")
	model := m.styles.Dim.Render(" " + m.model)
	return title + model
}

func (m *Model) inputArea() string {
	if m.recording {
		return m.styles.InputBox.Width(m.width - 2).Render(
			m.styles.Recording.Render("● REC") + "  Recording... Ctrl+R to stop, Esc to cancel")
	}
	return m.styles.InputBox.Width(m.width - 2).Render(m.input.View())
}

// statusBar renders one line: spinner and status on the left, token and
// queue counters on the right, truncated to the terminal width.
func (m *Model) statusBar() string {
	left := m.status
	if m.busy {
		left = m.spin.View() + " Thinking... (Ctrl+C to interrupt)"
		if m.status != "" && strings.Contains(m.status, "queued") {
			left += "  " + m.status
		}
	}

	right := fmt.Sprintf("in:%d out:%d", m.usage.Input, m.usage.Output)
	if m.usage.CacheRead > 0 || m.usage.CacheWrite > 0 {
		right += fmt.Sprintf(" cache:%d/%d", m.usage.CacheRead, m.usage.CacheWrite)
	}
	if len(m.queue) > 0 {
		right += fmt.Sprintf(" | queue:%d", len(m.queue))
	}

	pad := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if pad < 1 {
		left = runewidth.Truncate(left, m.width-lipgloss.Width(right)-5, "…")
		pad = m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
		if pad < 1 {
			pad = 1
		}
	}
	return m.styles.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", pad) + right)
}

// refreshViewport re-renders the transcript and pins the view to the
// bottom so new output is always visible.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for i := range m.entries {
		b.WriteString(m.renderEntry(&m.entries[i]))
		b.WriteString("\n")
	}
	if m.streamBuf.Len() > 0 {
		b.WriteString(m.styles.AssistantLabel.Render("Assistant"))
		b.WriteString("\n")
		b.WriteString(m.streamBuf.String())
		b.WriteString("\n")
	}
	m.vp.SetContent(b.String())
	m.vp.GotoBottom()
}

// renderEntry formats one transcript item for display.
func (m *Model) renderEntry(e *Entry) string {
	switch c := e.Content.(type) {
	case TextContent:
		switch e.Role {
		case RoleUser:
			return m.styles.UserLabel.Render("You") + "\n" + c.Text + "\n"
		case RoleAssistant:
			return m.styles.AssistantLabel.Render("Assistant") + "\n" +
				strings.TrimRight(m.md.Render(c.Text), "\n") + "\n"
		default:
			return m.styles.SystemLabel.Render("System") + " " +
				m.styles.Dim.Render(c.Text) + "\n"
		}
	case ThinkingContent:
		return m.styles.Thinking.Render("… "+firstLine(c.Text)) + "\n"
	case ToolUseContent:
		head := m.styles.ToolLabel.Render("Tool: " + c.Name)
		if c.Input == "" {
			return head + "\n"
		}
		return head + "\n" + m.styles.Dim.Render(indent(c.Input, "  ")) + "\n"
	case ToolResultContent:
		label := "Result: " + c.Name
		style := m.styles.ToolLabel
		if c.IsError {
			label = "Error: " + c.Name
			style = m.styles.Error
		}
		return style.Render(label) + "\n" +
			m.styles.Dim.Render(indent(clip(c.Result, 2000), "  ")) + "\n"
	case ShellContent:
		head := m.styles.ShellLabel.Render("$ " + c.Command)
		if !c.Done && c.Output == "" {
			return head + " " + m.styles.Dim.Render("(running)") + "\n"
		}
		out := strings.TrimRight(c.Output, "\n")
		body := ""
		if out != "" {
			body = m.styles.ShellOutput.Render(out) + "\n"
		}
		if c.Done && c.ExitCode != 0 {
			body += m.styles.Error.Render(fmt.Sprintf("exit %d", c.ExitCode)) + "\n"
		}
		return head + "\n" + body
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// clip bounds very large tool results so the transcript stays scrollable.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("\n… (%d more bytes)", len(s)-max)
}
