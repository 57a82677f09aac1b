package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)
)

var statusColors = map[string]string{
	"completed": "42",
	"active":    "42",
	"healthy":   "42",
	"connected": "42",
	"running":   "214",
	"pending":   "214",
	"syncing":   "214",
	"failed":    "196",
	"error":     "196",
	"inactive":  "243",
}

// statusStyle colours a status word.
func statusStyle(status string) string {
	color, ok := statusColors[strings.ToLower(status)]
	if !ok {
		color = "252"
	}
	if status == "" {
		status = "—"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(status)
}

// table writes aligned rows under a styled header row.
type table struct {
	w     *tabwriter.Writer
	width int
}

func newTable(out io.Writer, columns ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)}
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = titleStyle.Render(c)
		t.width += len(c) + 12
	}
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "\t")+"\t")
	_, _ = fmt.Fprintln(t.w, strings.Repeat("─", t.width))
	return t
}

func (t *table) row(cells ...string) {
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "\t")+"\t")
}

func (t *table) flush() {
	_ = t.w.Flush()
}

// heading prints a header line with a count.
func heading(out io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf(format, args...)))
	_, _ = fmt.Fprintln(out)
}

// empty prints the "nothing here" line for a listing.
func empty(out io.Writer, what string) {
	_, _ = fmt.Fprintln(out, headerStyle.Render("No "+what+" found"))
}

// field prints one "label: value" line.
func field(out io.Writer, label, value string) {
	_, _ = fmt.Fprintf(out, "%s %s\n", labelStyle.Render(label+":"), value)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

// when renders a timestamp relative to now, in the listing style.
func when(t time.Time) string {
	if t.IsZero() {
		return dateStyle.Render("—")
	}
	return dateStyle.Render(humanize.Time(t))
}

// whenString parses an RFC 3339 (or bare ISO) timestamp for when.
func whenString(s string) string {
	if s == "" {
		return when(time.Time{})
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return when(t)
		}
	}
	return dateStyle.Render(s)
}

func percent(v float64) string {
	return humanize.FormatFloat("#,###.#", v) + "%"
}
