// Package tui is the interactive terminal front end of the chat view.
package tui

import (
	"github.com/aetherium/aetherium-cli/internal"
	"github.com/charmbracelet/lipgloss"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// LoadTheme returns the saved theme. Without one it follows the terminal
// background.
func LoadTheme(store *internal.Store) string {
	if store != nil {
		if v, ok, err := store.Get(internal.KeyTheme); err == nil && ok && (v == ThemeDark || v == ThemeLight) {
			return v
		}
	}
	if lipgloss.HasDarkBackground() {
		return ThemeDark
	}
	return ThemeLight
}

// SaveTheme persists theme.
func SaveTheme(store *internal.Store, theme string) error {
	if theme != ThemeLight {
		theme = ThemeDark
	}
	return store.Set(internal.KeyTheme, theme)
}

// Toggle returns the other theme.
func Toggle(theme string) string {
	if theme == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Styles holds the rendered look of one theme.
type Styles struct {
	Theme     string
	Header    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Muted     lipgloss.Style
	Online    lipgloss.Style
	Offline   lipgloss.Style
	Terminal  lipgloss.Style
	Input     lipgloss.Style
	Footer    lipgloss.Style
}

// NewStyles builds the styles for theme.
func NewStyles(theme string) Styles {
	accent := lipgloss.Color("62")
	text := lipgloss.Color("252")
	muted := lipgloss.Color("243")
	border := lipgloss.Color("238")
	if theme == ThemeLight {
		accent = lipgloss.Color("25")
		text = lipgloss.Color("235")
		muted = lipgloss.Color("245")
		border = lipgloss.Color("250")
	} else {
		theme = ThemeDark
	}
	return Styles{
		Theme: theme,
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1),
		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		Assistant: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		Muted: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
		Online: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		Offline: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		Terminal: lipgloss.NewStyle().
			Foreground(text).
			Background(lipgloss.Color("236")).
			Padding(0, 1),
		Input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(muted),
	}
}
