// Package theme holds the color schemes used for command line output.
package theme

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Theme is a color scheme.
type Theme struct {
	Name string
	Type string // "dark" or "light"

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Border    lipgloss.Color
}

// Dark returns the default dark theme (Catppuccin Mocha).
func Dark() *Theme {
	return &Theme{
		Name: "dark",
		Type: "dark",

		Primary:   lipgloss.Color("#CBA6F7"), // Mauve
		Secondary: lipgloss.Color("#89B4FA"), // Blue
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red

		Text:      lipgloss.Color("#CDD6F4"),
		TextMuted: lipgloss.Color("#A6ADC8"),
		Border:    lipgloss.Color("#6C7086"),
	}
}

// Light returns the light theme (Catppuccin Latte).
func Light() *Theme {
	return &Theme{
		Name: "light",
		Type: "light",

		Primary:   lipgloss.Color("#8839EF"), // Mauve
		Secondary: lipgloss.Color("#1E66F5"), // Blue
		Success:   lipgloss.Color("#40A02B"), // Green
		Warning:   lipgloss.Color("#DF8E1D"), // Yellow
		Error:     lipgloss.Color("#D20F39"), // Red

		Text:      lipgloss.Color("#4C4F69"),
		TextMuted: lipgloss.Color("#6C6F85"),
		Border:    lipgloss.Color("#9CA0B0"),
	}
}

var builtin = map[string]func() *Theme{
	"dark":  Dark,
	"light": Light,
}

// Names lists the available themes.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a theme by name.
func Get(name string) (*Theme, error) {
	f, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("theme %q not found", name)
	}
	return f(), nil
}

// Styles are the lipgloss styles derived from a theme.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// Styles builds the output styles for t.
func (t *Theme) Styles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:   lipgloss.NewStyle().Foreground(t.Secondary),
		Muted:   lipgloss.NewStyle().Foreground(t.TextMuted),
		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
	}
}

// Plain returns unstyled output styles.
func Plain() Styles {
	s := lipgloss.NewStyle()
	return Styles{Title: s, Label: s, Muted: s, Success: s, Warning: s, Error: s, Box: s}
}
