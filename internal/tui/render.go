package tui

import (
	"fmt"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/chat"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// Markdown renders assistant content. A nil Markdown falls back to
// plain word wrapping.
type Markdown interface {
	Render(in string) (string, error)
}

// NewMarkdown builds a glamour renderer for theme wrapping at width.
func NewMarkdown(theme string, width int) Markdown {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(theme),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		internal.LogDebug("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

// RenderTurns lays out the conversation for a viewport width wide.
// pending is drawn in place of a streaming placeholder's content.
func RenderTurns(turns []internal.ConversationTurn, st Styles, md Markdown, width int, pending string) string {
	if len(turns) == 0 {
		return st.Muted.Render("Start a conversation with Aetherium. Type /help for commands.")
	}
	if width < 20 {
		width = 20
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		stamp := ""
		if !t.Timestamp.IsZero() {
			stamp = " " + st.Muted.Render(t.Timestamp.Local().Format("15:04"))
		}
		if t.Role == internal.RoleUser {
			b.WriteString(st.User.Render("You") + stamp + "\n")
			b.WriteString(wordwrap.String(t.Content, width) + "\n")
			continue
		}

		b.WriteString(st.Assistant.Render("Aetherium") + stamp + "\n")
		if t.Pending() {
			b.WriteString(st.Muted.Render(pending) + "\n")
			continue
		}
		b.WriteString(renderMarkdown(md, t.Content, width))
		if blocks := chat.CodeBlocks(t.Content); len(blocks) > 0 {
			b.WriteString(st.Muted.Render(blockHint(i, blocks)) + "\n")
		}
	}
	return b.String()
}

func renderMarkdown(md Markdown, content string, width int) string {
	if md != nil {
		if out, err := md.Render(content); err == nil {
			return out
		}
	}
	return wordwrap.String(content, width) + "\n"
}

func blockHint(turn int, blocks []chat.CodeBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		label := fmt.Sprintf("#%d %s", blk.Index+1, blk.Language)
		if blk.Runnable() {
			label += " (runnable)"
		}
		parts = append(parts, label)
	}
	return fmt.Sprintf("message %d code: %s", turn+1, strings.Join(parts, ", "))
}

// StatusLine renders the connection indicator and chat id.
func StatusLine(state realtime.State, chatID string, st Styles) string {
	indicator := st.Offline.Render("● offline")
	if state == realtime.Connected {
		indicator = st.Online.Render("● connected")
	}
	line := st.Header.Render("Aetherium Chat") + " " + indicator
	if chatID != "" {
		line += " " + st.Muted.Render("chat "+chatID)
	}
	return line
}

// Footer renders the newest notifications, one line each, cut to width.
func Footer(list []notify.Notification, max, width int) string {
	if width <= 0 {
		width = 80
	}
	if len(list) > max {
		list = list[len(list)-max:]
	}
	lines := make([]string, 0, len(list))
	for _, n := range list {
		lines = append(lines, truncate.StringWithTail(notify.Format(n), uint(width), "…"))
	}
	return strings.Join(lines, "\n")
}
