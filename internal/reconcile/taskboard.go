package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/realtime"
)

// TaskBoard mirrors the server's task list for the orchestrator view.
type TaskBoard struct {
	Tasks      []internal.TaskRecord
	SelectedID string
	// Outputs holds the latest decoded output per task id.
	Outputs map[string]Payload
	// NeedsReload is set when the server announced a new task.
	NeedsReload bool
}

// Replace installs a freshly loaded task list and clears NeedsReload.
func (b *TaskBoard) Replace(tasks []internal.TaskRecord) {
	b.Tasks = tasks
	b.NeedsReload = false
}

// Selected returns the selected task, if any.
func (b *TaskBoard) Selected() (internal.TaskRecord, bool) {
	if b.SelectedID == "" {
		return internal.TaskRecord{}, false
	}
	for _, t := range b.Tasks {
		if t.ID == b.SelectedID {
			return t, true
		}
	}
	return internal.TaskRecord{}, false
}

// Apply routes one frame into the board and reports whether it changed.
// Status and subtask frames only touch the selected task.
func (b *TaskBoard) Apply(msg realtime.Message) bool {
	switch msg.Type {
	case realtime.TypeTaskCreated:
		b.NeedsReload = true
		return true
	case realtime.TypeStatus:
		return b.patchSelected(msg.TaskID, func(t *internal.TaskRecord) {
			t.Status = msg.Status
			if msg.Progress != nil {
				t.Progress = *msg.Progress
			}
		})
	case realtime.TypeSubtasks:
		var subtasks []internal.Subtask
		if err := json.Unmarshal(msg.Subtasks, &subtasks); err != nil {
			internal.LogDebug("ignoring subtasks frame for %s: %v", msg.TaskID, err)
			return false
		}
		return b.patchSelected(msg.TaskID, func(t *internal.TaskRecord) {
			t.Subtasks = subtasks
		})
	case realtime.TypeOutput:
		if msg.TaskID == "" {
			return false
		}
		if b.Outputs == nil {
			b.Outputs = make(map[string]Payload)
		}
		b.Outputs[msg.TaskID] = parseTaskOutput(msg.Text)
		return true
	}
	return false
}

func (b *TaskBoard) patchSelected(taskID string, patch func(*internal.TaskRecord)) bool {
	if taskID == "" || taskID != b.SelectedID {
		return false
	}
	for i := range b.Tasks {
		if b.Tasks[i].ID == taskID {
			patch(&b.Tasks[i])
			return true
		}
	}
	return false
}

func parseTaskOutput(text string) Payload {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		return ErrorPayload{Message: fmt.Sprintf("Failed to parse task output: %v", err)}
	}
	return ParsePayload(text)
}
