package app

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestThemeByName(t *testing.T) {
	assert.Equal(t, "default-light", ThemeByName("default-light").Name)
	assert.Equal(t, DefaultDark, ThemeByName("no-such-theme"), "unknown theme falls back to dark")
}

func TestStylesUsePaletteColors(t *testing.T) {
	s := NewStyles(DefaultDark)
	assert.Equal(t, lipgloss.Color(DefaultDark.Border), s.Divider.GetForeground())
	assert.Equal(t, lipgloss.Color(DefaultDark.Error), s.Error.GetForeground())
	assert.Equal(t, lipgloss.Color(DefaultDark.Accent), s.Title.GetForeground())
}
