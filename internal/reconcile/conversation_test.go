package reconcile

import (
	"testing"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, raw string) realtime.Message {
	t.Helper()
	msg, err := realtime.Decode([]byte(raw))
	require.NoError(t, err)
	return msg
}

func userTurn(content string) internal.ConversationTurn {
	return internal.ConversationTurn{Role: internal.RoleUser, Content: content}
}

func placeholder(taskID string) internal.ConversationTurn {
	return internal.ConversationTurn{Role: internal.RoleAssistant, TaskID: taskID, IsStreaming: true}
}

func TestConversation_TaskCreatedAdoptsID(t *testing.T) {
	c := &Conversation{Awaiting: true}
	c.Append(
		userTurn("earlier"),
		internal.ConversationTurn{Role: internal.RoleAssistant, Content: "old answer", TaskID: "old"},
		userTurn("hello"),
		placeholder(""),
	)
	before := internal.CloneTurns(c.Turns)

	changed := c.Apply(frame(t, `{"type":"task_created","task_id":"T"}`))

	assert.True(t, changed)
	assert.Equal(t, "T", c.ActiveTaskID)
	assert.Equal(t, "T", c.Turns[3].TaskID)
	if diff := cmp.Diff(before[:3], c.Turns[:3]); diff != "" {
		t.Errorf("other turns mutated (-before +after):\n%s", diff)
	}
}

func TestConversation_TaskCreatedIgnoredOnceActive(t *testing.T) {
	c := &Conversation{ActiveTaskID: "abc"}
	c.Append(placeholder(""))

	assert.False(t, c.Apply(frame(t, `{"type":"task_created","task_id":"other"}`)))
	assert.Equal(t, "abc", c.ActiveTaskID)
	assert.Empty(t, c.Turns[0].TaskID)
}

func TestConversation_TaskCreatedBackfillsFirstUnmatchedOnly(t *testing.T) {
	c := &Conversation{}
	c.Append(placeholder(""), placeholder(""))

	c.Apply(frame(t, `{"type":"task_created","task_id":"T"}`))

	assert.Equal(t, "T", c.Turns[0].TaskID)
	assert.Empty(t, c.Turns[1].TaskID)
}

func TestConversation_OutputCompletesTurnOnce(t *testing.T) {
	c := &Conversation{ActiveTaskID: "T", Awaiting: true}
	c.Append(userTurn("q"), placeholder("T"))

	out := frame(t, `{"type":"output","task_id":"T","message":"{\"explanatory_summary\":\"done\"}"}`)
	require.True(t, c.Apply(out))

	turn := c.Turns[1]
	assert.Equal(t, "done", turn.Content)
	assert.False(t, turn.IsStreaming)
	assert.JSONEq(t, `{"explanatory_summary":"done"}`, string(turn.StructuredOutput))
	assert.False(t, c.Awaiting)

	snapshot := internal.CloneTurns(c.Turns)
	assert.False(t, c.Apply(out), "re-delivery must be a no-op")
	if diff := cmp.Diff(snapshot, c.Turns); diff != "" {
		t.Errorf("re-delivery mutated turns:\n%s", diff)
	}

	later := frame(t, `{"type":"output","task_id":"T","message":"{\"response\":\"again\"}"}`)
	c.Apply(later)
	assert.Equal(t, "done", c.Turns[1].Content)
}

func TestConversation_OutputUsesAdoptedID(t *testing.T) {
	c := &Conversation{ActiveTaskID: "T"}
	c.Append(placeholder("T"))

	c.Apply(frame(t, `{"type":"output","message":"plain reply"}`))

	assert.Equal(t, "plain reply", c.Turns[0].Content)
	assert.False(t, c.Turns[0].IsStreaming)
	assert.Nil(t, c.Turns[0].StructuredOutput)
}

func TestConversation_OutputWithoutAnyID(t *testing.T) {
	c := &Conversation{Awaiting: true}
	c.Append(placeholder(""))

	assert.False(t, c.Apply(frame(t, `{"type":"output","message":"x"}`)))
	assert.True(t, c.Awaiting)
	assert.True(t, c.Turns[0].IsStreaming)
}

func TestConversation_OutputForUnknownTaskClearsAwaiting(t *testing.T) {
	c := &Conversation{ActiveTaskID: "T", Awaiting: true}
	c.Append(placeholder("T"))

	assert.True(t, c.Apply(frame(t, `{"type":"output","task_id":"other","message":"x"}`)))
	assert.False(t, c.Awaiting)
	assert.True(t, c.Turns[0].IsStreaming)
}

func TestConversation_OutputDecorations(t *testing.T) {
	c := &Conversation{}
	c.Append(placeholder("T"))

	c.Apply(frame(t, `{"type":"output","task_id":"T","message":"{\"response\":\"ok\"}","explanation":"# Notes\nuse it","run_steps":["make"]}`))

	assert.Equal(t, "ok\n\nNotes\nuse it\n\n**Run Steps:**\n1. `make`", c.Turns[0].Content)
}

func TestConversation_StatusCompletedClearsAwaiting(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantAwaiting bool
	}{
		{name: "completed", raw: `{"type":"status","task_id":"zzz","status":"completed"}`, wantAwaiting: false},
		{name: "running", raw: `{"type":"status","task_id":"T","status":"running"}`, wantAwaiting: true},
		{name: "unknown type", raw: `{"type":"heartbeat"}`, wantAwaiting: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Conversation{ActiveTaskID: "T", Awaiting: true}
			c.Append(placeholder("T"))
			c.Apply(frame(t, tt.raw))
			assert.Equal(t, tt.wantAwaiting, c.Awaiting)
			assert.True(t, c.Turns[0].IsStreaming)
		})
	}
}

func TestConversation_ErrorOutputScenario(t *testing.T) {
	c := &Conversation{ActiveTaskID: "abc", Awaiting: true}
	c.Append(
		internal.ConversationTurn{Role: internal.RoleUser, Content: "hello", Timestamp: time.Now()},
		placeholder("abc"),
	)

	c.Apply(frame(t, `{"type":"output","task_id":"abc","message":"{\"error\":\"boom\"}"}`))

	assert.Equal(t, "boom", c.Turns[1].Content)
	assert.False(t, c.Turns[1].IsStreaming)
}

func TestConversation_History(t *testing.T) {
	c := &Conversation{}
	for i := 0; i < 12; i++ {
		c.Append(userTurn(string(rune('a' + i))))
	}
	h := c.History(10)
	require.Len(t, h, 10)
	assert.Equal(t, "c", h[0].Content)
	assert.Equal(t, "l", h[9].Content)
	assert.Nil(t, (&Conversation{}).History(10))
}

func TestConversation_Reset(t *testing.T) {
	c := &Conversation{ActiveTaskID: "x", Awaiting: true}
	c.Append(userTurn("a"))
	c.Reset(nil)
	assert.Empty(t, c.Turns)
	assert.Empty(t, c.ActiveTaskID)
	assert.False(t, c.Awaiting)
}
