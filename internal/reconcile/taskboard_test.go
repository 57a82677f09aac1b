package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoard() *TaskBoard {
	return &TaskBoard{
		Tasks: []internal.TaskRecord{
			{ID: "a", Description: "first", Status: internal.TaskStatusPending},
			{ID: "b", Description: "second", Status: internal.TaskStatusPending},
		},
		SelectedID: "a",
	}
}

func TestTaskBoard_StatusPatchesSelectedOnly(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantChange bool
		wantA      string
		wantB      string
	}{
		{name: "selected task", raw: `{"type":"status","task_id":"a","status":"running","progress":0.4}`, wantChange: true, wantA: "running", wantB: "pending"},
		{name: "other task ignored", raw: `{"type":"status","task_id":"b","status":"failed"}`, wantChange: false, wantA: "pending", wantB: "pending"},
		{name: "no task id ignored", raw: `{"type":"status","status":"failed"}`, wantChange: false, wantA: "pending", wantB: "pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBoard()
			assert.Equal(t, tt.wantChange, b.Apply(frame(t, tt.raw)))
			assert.Equal(t, tt.wantA, b.Tasks[0].Status)
			assert.Equal(t, tt.wantB, b.Tasks[1].Status)
		})
	}
}

func TestTaskBoard_StatusProgress(t *testing.T) {
	b := newBoard()
	b.Tasks[0].Progress = 0.2
	b.Apply(frame(t, `{"type":"status","task_id":"a","status":"running"}`))
	assert.Equal(t, 0.2, b.Tasks[0].Progress, "missing progress keeps the old value")

	b.Apply(frame(t, `{"type":"status","task_id":"a","status":"running","progress":0.9}`))
	selected, ok := b.Selected()
	require.True(t, ok)
	assert.Equal(t, 0.9, selected.Progress)
}

func TestTaskBoard_Subtasks(t *testing.T) {
	b := newBoard()
	assert.True(t, b.Apply(frame(t, `{"type":"subtasks","task_id":"a","subtasks":[{"description":"plan","status":"completed","agent_type":"planner"}]}`)))
	require.Len(t, b.Tasks[0].Subtasks, 1)
	assert.Equal(t, "planner", b.Tasks[0].Subtasks[0].AgentType)

	assert.False(t, b.Apply(frame(t, `{"type":"subtasks","task_id":"a","subtasks":"nope"}`)))
	assert.Len(t, b.Tasks[0].Subtasks, 1)
}

func TestTaskBoard_TaskCreatedRequestsReload(t *testing.T) {
	b := newBoard()
	b.Apply(frame(t, `{"type":"task_created","task_id":"c"}`))
	assert.True(t, b.NeedsReload)

	b.Replace(append(b.Tasks, internal.TaskRecord{ID: "c"}))
	assert.False(t, b.NeedsReload)
	assert.Len(t, b.Tasks, 3)
}

func TestTaskBoard_Outputs(t *testing.T) {
	b := newBoard()
	b.Apply(frame(t, `{"type":"output","task_id":"b","message":"[{\"response\":\"built\"}]"}`))
	require.Contains(t, b.Outputs, "b")
	assert.Equal(t, "built", b.Outputs["b"].Render())

	b.Apply(frame(t, `{"type":"output","task_id":"b","message":"not json"}`))
	assert.IsType(t, ErrorPayload{}, b.Outputs["b"])
	assert.True(t, strings.HasPrefix(b.Outputs["b"].Render(), "Failed to parse task output: "))
}

func TestTaskBoard_SelectedMissing(t *testing.T) {
	b := &TaskBoard{SelectedID: "gone"}
	_, ok := b.Selected()
	assert.False(t, ok)
}

func TestAssistant_Apply(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := &Assistant{CurrentTaskID: "w1", Thinking: true}
	assert.False(t, a.Apply(frame(t, `{"type":"output","task_id":"other","message":"{}"}`), now))
	assert.True(t, a.Thinking)

	assert.True(t, a.Apply(frame(t, `{"type":"output","task_id":"w1","message":"[{\"explanatory_summary\":\"refactored\"}]"}`), now))
	require.Len(t, a.Messages, 1)
	assert.Equal(t, "refactored", a.Messages[0].Content)
	assert.Equal(t, internal.RoleAssistant, a.Messages[0].Role)
	assert.False(t, a.Thinking)
	assert.Empty(t, a.CurrentTaskID)

	b := &Assistant{CurrentTaskID: "w2", Thinking: true}
	assert.True(t, b.Apply(frame(t, `{"type":"output","task_id":"w2","message":"garbage"}`), now))
	assert.Empty(t, b.Messages)
	assert.False(t, b.Thinking)
	assert.Empty(t, b.CurrentTaskID)
}
