package reconcile

import (
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/realtime"
)

// Assistant is the workspace AI panel: a side conversation waiting on at
// most one task at a time.
type Assistant struct {
	Messages      []internal.ConversationTurn `json:"messages"`
	CurrentTaskID string                      `json:"currentTaskId,omitempty"`
	Thinking      bool                        `json:"thinking,omitempty"`
}

// Apply handles output for the current assistant task. Output that is not
// JSON ends the wait without adding a reply.
func (a *Assistant) Apply(msg realtime.Message, now time.Time) bool {
	if msg.Type != realtime.TypeOutput || a.CurrentTaskID == "" || msg.TaskID != a.CurrentTaskID {
		return false
	}
	payload := ParsePayload(msg.Text)
	if _, raw := payload.(RawPayload); !raw {
		a.Messages = append(a.Messages, internal.ConversationTurn{
			Role:      internal.RoleAssistant,
			Content:   payload.Render(),
			Timestamp: now,
		})
	}
	a.Thinking = false
	a.CurrentTaskID = ""
	return true
}
