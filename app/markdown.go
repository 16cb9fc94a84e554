package app

import (
	"github.com/charmbracelet/glamour"
)

// markdownRenderer wraps glamour for transcript rendering.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
	style    string
}

func newMarkdownRenderer(width int, style string) (*markdownRenderer, error) {
	if style == "" {
		style = "auto"
	}
	r, err := glamour.NewTermRenderer(
		glamourOption(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &markdownRenderer{renderer: r, width: width, style: style}, nil
}

// Render renders markdown; on renderer failure the raw text comes back
// unchanged so the transcript never loses content.
func (m *markdownRenderer) Render(text string) string {
	if m == nil || m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return out
}

// SetWidth recreates the renderer at a new wrap width.
func (m *markdownRenderer) SetWidth(width int) {
	if m == nil || width == m.width {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamourOption(m.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	m.renderer = r
	m.width = width
}

func glamourOption(style string) glamour.TermRendererOption {
	switch style {
	case "dark":
		return glamour.WithStandardStyle("dark")
	case "light":
		return glamour.WithStandardStyle("light")
	default:
		return glamour.WithAutoStyle()
	}
}
