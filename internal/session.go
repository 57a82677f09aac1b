package internal

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// Role identifies who authored a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn represents one entry in the chat log
type ConversationTurn struct {
	Role             Role            `json:"role" yaml:"role"`
	Content          string          `json:"content" yaml:"content"`
	Timestamp        time.Time       `json:"timestamp" yaml:"timestamp"`
	TaskID           string          `json:"taskId,omitempty" yaml:"task_id,omitempty"`
	IsStreaming      bool            `json:"isStreaming,omitempty" yaml:"is_streaming,omitempty"`
	StructuredOutput json.RawMessage `json:"structuredOutput,omitempty" yaml:"-"`
}

// Pending reports whether the turn is a streaming placeholder still waiting for output.
func (t ConversationTurn) Pending() bool {
	return t.Role == RoleAssistant && t.IsStreaming
}

// Speaker returns the display label used in transcripts.
func (t ConversationTurn) Speaker() string {
	if t.Role == RoleUser {
		return "User"
	}
	return "Assistant"
}

// SavedChat represents a chat stored in history
type SavedChat struct {
	ID        string             `json:"id" yaml:"id"`
	Title     string             `json:"title" yaml:"title"`
	Messages  []ConversationTurn `json:"messages" yaml:"messages"`
	Timestamp time.Time          `json:"timestamp" yaml:"timestamp"`
}

const chatTitleLength = 50

// ChatTitle derives a history title from the first turn of a chat.
func ChatTitle(turns []ConversationTurn) string {
	if len(turns) == 0 || turns[0].Content == "" {
		return "New Chat"
	}
	content := turns[0].Content
	if utf8.RuneCountInString(content) <= chatTitleLength {
		return content
	}
	return string([]rune(content)[:chatTitleLength])
}

// Transcript renders turns as "User: ..." / "Assistant: ..." paragraphs.
func Transcript(turns []ConversationTurn) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		parts = append(parts, turn.Speaker()+": "+turn.Content)
	}
	return strings.Join(parts, "\n\n")
}

// CloneTurns returns a copy of turns that shares no backing array.
func CloneTurns(turns []ConversationTurn) []ConversationTurn {
	if turns == nil {
		return nil
	}
	out := make([]ConversationTurn, len(turns))
	copy(out, turns)
	return out
}
