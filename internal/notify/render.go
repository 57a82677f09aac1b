package notify

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

var icons = map[Severity]string{
	Success: "✓",
	Error:   "✗",
	Warning: "!",
	Info:    "i",
}

// Style returns the lipgloss style for a severity.
func Style(s Severity) lipgloss.Style {
	switch s.Normalize() {
	case Success:
		return successStyle
	case Error:
		return errorStyle
	case Warning:
		return warningStyle
	default:
		return infoStyle
	}
}

// Format renders a notification as a single styled line.
func Format(n Notification) string {
	sev := n.Severity.Normalize()
	return Style(sev).Render(icons[sev]) + " " + n.Message
}

// Fprint writes every notification in list to w, one per line.
func Fprint(w io.Writer, list []Notification) {
	for _, n := range list {
		fmt.Fprintln(w, Format(n))
	}
}
