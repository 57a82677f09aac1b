package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Server frame types the client reacts to. Anything else is stored and
// passed through untouched.
const (
	TypeTaskCreated = "task_created"
	TypeOutput      = "output"
	TypeStatus      = "status"
	TypeSubtasks    = "subtasks"

	TypeSubscribeTask = "subscribe_task"
)

// Message is one frame received from the server. It is immutable once
// appended to a Channel.
type Message struct {
	Type        string
	TaskID      string
	Status      string
	Progress    *float64
	Text        string
	Explanation string
	RunSteps    []string
	Subtasks    json.RawMessage
	Raw         json.RawMessage
	ReceivedAt  time.Time
}

// Decode parses a frame. Any valid JSON value is accepted; fields are read
// individually so a badly typed field never rejects the whole frame.
func Decode(data []byte) (Message, error) {
	if !json.Valid(data) {
		return Message{}, fmt.Errorf("frame is not valid JSON")
	}
	msg := Message{Raw: append(json.RawMessage(nil), data...)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// arrays, strings and numbers are kept without a type
		return msg, nil
	}

	msg.Type = stringField(fields["type"])
	msg.TaskID = stringField(fields["task_id"])
	if msg.TaskID == "" {
		msg.TaskID = stringField(fields["taskId"])
	}
	msg.Status = stringField(fields["status"])
	msg.Text = textField(fields["message"])
	msg.Explanation = stringField(fields["explanation"])

	if raw, ok := fields["progress"]; ok {
		var p float64
		if json.Unmarshal(raw, &p) == nil {
			msg.Progress = &p
		}
	}
	if raw, ok := fields["run_steps"]; ok {
		var steps []string
		if json.Unmarshal(raw, &steps) == nil {
			msg.RunSteps = steps
		}
	}
	if raw, ok := fields["subtasks"]; ok && string(raw) != "null" {
		msg.Subtasks = raw
	}
	return msg, nil
}

// stringField decodes a JSON string, or renders numbers as their literal text
// so numeric task ids still match.
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// textField keeps non-string payloads as their JSON text so the reconciler
// can still parse them.
func textField(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
