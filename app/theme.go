package app

import (
	"github.com/charmbracelet/lipgloss"
)

// ColorPalette holds the semantic colors for a theme. Values are anything
// lipgloss accepts (ANSI 256 number or hex).
type ColorPalette struct {
	Name string

	Accent    string // titles, prompt border
	Dim       string // muted/secondary text
	Border    string // subtle borders
	BarBg     string // status bar background
	BarFg     string // status bar foreground
	Error     string // errors, failed commands
	User      string // user entries
	Assistant string // assistant entries
	Tool      string // tool invocations and results
	Shell     string // shell command entries

	// Glamour markdown style: "dark", "light", or "auto"
	GlamourStyle string
}

// Styles holds the pre-computed lipgloss styles for a palette.
type Styles struct {
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Error     lipgloss.Style
	Divider   lipgloss.Style
	StatusBar lipgloss.Style
	InputBox  lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	ToolLabel      lipgloss.Style
	ShellLabel     lipgloss.Style
	ShellOutput    lipgloss.Style
	Thinking       lipgloss.Style
	Recording      lipgloss.Style

	Palette ColorPalette
}

// NewStyles builds all styles from a palette.
func NewStyles(p ColorPalette) *Styles {
	accent := lipgloss.Color(p.Accent)
	dim := lipgloss.Color(p.Dim)
	errorC := lipgloss.Color(p.Error)

	return &Styles{
		Palette: p,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),

		Dim: lipgloss.NewStyle().
			Foreground(dim),

		Error: lipgloss.NewStyle().
			Foreground(errorC),

		Divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color(p.Border)),

		StatusBar: lipgloss.NewStyle().
			Background(lipgloss.Color(p.BarBg)).
			Foreground(lipgloss.Color(p.BarFg)).
			Padding(0, 1),

		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),

		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.User)),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Assistant)),
		SystemLabel:    lipgloss.NewStyle().Bold(true).Foreground(dim),
		ToolLabel:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Tool)),
		ShellLabel:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.Shell)),
		ShellOutput:    lipgloss.NewStyle().Foreground(dim),
		Thinking:       lipgloss.NewStyle().Italic(true).Foreground(dim),
		Recording:      lipgloss.NewStyle().Bold(true).Foreground(errorC),
	}
}

// Built-in palettes.
var (
	DefaultDark = ColorPalette{
		Name:         "default-dark",
		Accent:       "12",
		Dim:          "245",
		Border:       "240",
		BarBg:        "236",
		BarFg:        "252",
		Error:        "9",
		User:         "10",
		Assistant:    "12",
		Tool:         "11",
		Shell:        "14",
		GlamourStyle: "dark",
	}

	DefaultLight = ColorPalette{
		Name:         "default-light",
		Accent:       "4",
		Dim:          "238",
		Border:       "248",
		BarBg:        "254",
		BarFg:        "236",
		Error:        "1",
		User:         "2",
		Assistant:    "4",
		Tool:         "3",
		Shell:        "6",
		GlamourStyle: "light",
	}

	// BuiltinThemes lists the available themes.
	BuiltinThemes = []ColorPalette{DefaultDark, DefaultLight}
)

// ThemeByName looks up a built-in theme, falling back to DefaultDark.
func ThemeByName(name string) ColorPalette {
	for i := range BuiltinThemes {
		if BuiltinThemes[i].Name == name {
			return BuiltinThemes[i]
		}
	}
	return DefaultDark
}
