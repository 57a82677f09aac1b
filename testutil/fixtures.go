package testutil

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// CreateSQLiteFixture creates a client state database with a saved conversation
func CreateSQLiteFixture(t *testing.T, dbPath string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(clientKVSchema); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	messages := []map[string]any{
		{"role": "user", "content": "write hello world", "timestamp": now},
		{"role": "assistant", "content": "print('hello')", "timestamp": now.Add(time.Second), "taskId": "task-1"},
	}
	saved := []map[string]any{
		{"id": "1740830400000", "title": "write hello world", "messages": messages, "timestamp": now},
	}

	InsertKV(t, db, "chatMessages", string(JSONMarshal(t, messages)))
	InsertKV(t, db, "savedChats", string(JSONMarshal(t, saved)))
}

// Sample realtime frames, as the server sends them.
var (
	FrameOutput    = json.RawMessage(`{"type":"output","task_id":"task-1","message":"{\"response\":\"hello\"}"}`)
	FrameStatus    = json.RawMessage(`{"type":"status","task_id":"task-1","status":"running","progress":0.5}`)
	FrameCompleted = json.RawMessage(`{"type":"status","task_id":"task-1","status":"completed","progress":1}`)
	FrameCreated   = json.RawMessage(`{"type":"task_created","task_id":"task-2"}`)
	FrameSubtasks  = json.RawMessage(`{"type":"subtasks","task_id":"task-1","subtasks":[{"description":"plan","status":"completed","agent_type":"planner"}]}`)
)

// Frame builds a JSON frame from fields
func Frame(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	return JSONMarshal(t, fields)
}
