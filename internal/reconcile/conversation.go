package reconcile

import (
	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/realtime"
)

// Conversation is the chat log plus the bookkeeping needed to route
// streamed output into it.
type Conversation struct {
	Turns []internal.ConversationTurn
	// ActiveTaskID is the task the view is waiting on, once known.
	ActiveTaskID string
	// Awaiting is set while a submission has not been answered.
	Awaiting bool
}

// Apply routes one frame into the conversation and reports whether the
// state changed.
func (c *Conversation) Apply(msg realtime.Message) bool {
	switch msg.Type {
	case realtime.TypeTaskCreated:
		return c.adopt(msg.TaskID)
	case realtime.TypeOutput:
		return c.output(msg)
	case realtime.TypeStatus:
		if msg.Status == internal.TaskStatusCompleted && c.Awaiting {
			c.Awaiting = false
			return true
		}
	}
	return false
}

// adopt takes taskID as the active task when none is known yet, and
// stamps it on the first streaming turn still missing an id.
func (c *Conversation) adopt(taskID string) bool {
	if c.ActiveTaskID != "" || taskID == "" {
		return false
	}
	c.ActiveTaskID = taskID
	for i := range c.Turns {
		if c.Turns[i].Pending() && c.Turns[i].TaskID == "" {
			c.Turns[i].TaskID = taskID
			break
		}
	}
	return true
}

func (c *Conversation) output(msg realtime.Message) bool {
	taskID := msg.TaskID
	if taskID == "" {
		taskID = c.ActiveTaskID
	}
	if taskID == "" {
		return false
	}

	changed := c.Awaiting
	c.Awaiting = false

	idx := c.PendingIndex(taskID)
	if idx < 0 {
		return changed
	}
	payload := ParsePayload(msg.Text)
	turn := &c.Turns[idx]
	turn.Content = Decorate(payload.Render(), msg.Explanation, msg.RunSteps)
	turn.StructuredOutput = payload.Structured()
	turn.IsStreaming = false
	return true
}

// PendingIndex returns the index of the first streaming turn for taskID,
// or -1.
func (c *Conversation) PendingIndex(taskID string) int {
	for i, turn := range c.Turns {
		if turn.Pending() && turn.TaskID == taskID {
			return i
		}
	}
	return -1
}

// Append adds turns to the end of the log.
func (c *Conversation) Append(turns ...internal.ConversationTurn) {
	c.Turns = append(c.Turns, turns...)
}

// History returns up to n of the most recent turns.
func (c *Conversation) History(n int) []internal.ConversationTurn {
	if n <= 0 || len(c.Turns) == 0 {
		return nil
	}
	start := len(c.Turns) - n
	if start < 0 {
		start = 0
	}
	return internal.CloneTurns(c.Turns[start:])
}

// Reset empties the log and forgets the active task.
func (c *Conversation) Reset(turns []internal.ConversationTurn) {
	c.Turns = internal.CloneTurns(turns)
	c.ActiveTaskID = ""
	c.Awaiting = false
}
