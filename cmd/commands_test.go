package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectsList(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/projects": jsonReply(map[string]any{"projects": []map[string]any{
			{"id": 3, "name": "atlas", "status": "active", "description": "route planner"},
		}}),
	})
	s := newSession(t, srv)

	out := s.mustRun("projects", "list")
	assert.Contains(t, out, "Found 1 project(s)")
	assert.Contains(t, out, "atlas")
	assert.Contains(t, out, "route planner")
}

func TestProjectsUpdateNeedsAField(t *testing.T) {
	s := newSession(t, nil)
	_, _, err := s.run("projects", "update", "3")
	require.Error(t, err)
	assert.True(t, internal.IsValidation(err))
}

func TestTasksListFiltersByStatus(t *testing.T) {
	var mu sync.Mutex
	var query string
	srv := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/tasks": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			query = r.URL.Query().Get("status")
			mu.Unlock()
			jsonReply([]map[string]any{
				{"id": "t-1", "description": "index the repo", "status": "running", "progress": 40},
			})(w, r)
		},
	})
	s := newSession(t, srv)
	t.Cleanup(func() { taskStatus = "" })

	out := s.mustRun("tasks", "list", "--status", "running")
	assert.Contains(t, out, "index the repo")
	mu.Lock()
	assert.Equal(t, "running", query)
	mu.Unlock()
}

func TestLogsPersistAcrossInvocations(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/health": jsonReply(map[string]any{"status": "healthy", "version": "2.1.0"}),
	})
	s := newSession(t, srv)

	out := s.mustRun("health")
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, "2.1.0")

	out = s.mustRun("logs", "show")
	assert.Contains(t, out, "API GET")
	assert.Contains(t, out, "/health")

	out = s.mustRun("logs", "query", "error")
	assert.NotContains(t, out, "/health")

	s.mustRun("logs", "clear")
	out = s.mustRun("logs", "query", "info")
	assert.NotContains(t, out, "/health")
}

func TestLogsLevelIsRemembered(t *testing.T) {
	s := newSession(t, nil)

	s.mustRun("logs", "level", "warning")
	out := s.mustRun("logs", "level")
	assert.Contains(t, out, "WARN")

	_, _, err := s.run("logs", "level", "loud")
	require.Error(t, err)
	assert.True(t, internal.IsValidation(err))
}

func TestLogsExportWritesJSON(t *testing.T) {
	s := newSession(t, nil)
	s.mustRun("theme", "dark")

	path := filepath.Join(t.TempDir(), "logs.json")
	s.mustRun("logs", "export", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []map[string]any
	testutil.JSONUnmarshal(t, data, &entries)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[0], "sessionId")
}

func TestThemeToggle(t *testing.T) {
	s := newSession(t, nil)

	out := s.mustRun("theme", "dark")
	assert.Contains(t, out, "dark")

	out = s.mustRun("theme", "toggle")
	assert.Contains(t, out, "light")

	out = s.mustRun("theme")
	assert.Contains(t, out, "light")

	_, _, err := s.run("theme", "neon")
	assert.True(t, internal.IsValidation(err))
}

func TestOpenRunsTheViewCommand(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/projects": jsonReply([]map[string]any{{"id": 1, "name": "atlas", "status": "active"}}),
		"GET /api/integrations": jsonReply(map[string]any{"integrations": []map[string]any{
			{"id": "i-1", "name": "alerts", "type": "slack", "status": "connected"},
		}}),
	})
	s := newSession(t, srv)

	out := s.mustRun("open", "#projects")
	assert.Contains(t, out, "atlas")

	// without a route the last view opens again
	out = s.mustRun("open")
	assert.Contains(t, out, "atlas")

	out = s.mustRun("open", "integrations")
	assert.Contains(t, out, "alerts")
	assert.Contains(t, out, "slack")
}

func TestOpenList(t *testing.T) {
	s := newSession(t, nil)
	t.Cleanup(func() { listViews = false })

	out := s.mustRun("open", "--list")
	assert.Contains(t, out, "#orchestrator")
	assert.Contains(t, out, "Task Orchestrator")
}

func TestObservabilityShowsCacheAndMetrics(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/cache/stats": jsonReply(map[string]any{
			"cache_hits": 3000, "cache_misses": 1000, "cache_size": 42,
			"alerts": []map[string]any{{"severity": "high", "message": "memory pressure"}},
		}),
		"GET /api/observability/metrics": jsonReply(map[string]any{"metrics": []map[string]any{
			{"name": "queue_depth", "value": 12, "status": "normal"},
		}}),
	})
	s := newSession(t, srv)

	out := s.mustRun("observability")
	assert.Contains(t, out, "3,000")
	assert.Contains(t, out, "Hit rate")
	assert.Contains(t, out, "memory pressure")
	assert.Contains(t, out, "queue_depth")
}

func TestSecurityRejectsUnknownSeverity(t *testing.T) {
	s := newSession(t, nil)
	t.Cleanup(func() { policySeverity = "medium" })

	_, _, err := s.run("security", "policies", "create", "no-secrets", "--severity", "urgent")
	require.Error(t, err)
	assert.True(t, internal.IsValidation(err))
}

func TestPromptsFavoriteFlipsTheMark(t *testing.T) {
	var mu sync.Mutex
	var sent map[string]any
	srv := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/prompts": jsonReply([]map[string]any{
			{"id": 7, "title": "Refactor", "content": "Refactor this", "is_favorite": false},
		}),
		"PUT /api/prompts/7": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			_ = json.NewDecoder(r.Body).Decode(&sent)
			jsonReply(sent)(w, r)
		},
	})
	s := newSession(t, srv)

	_, errOut, err := s.run("prompts", "favorite", "7")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Added to favorites")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, true, sent["is_favorite"])
	assert.Equal(t, "Refactor this", sent["content"])
}

func TestIntegrationsCreateNeedsType(t *testing.T) {
	s := newSession(t, nil)
	_, _, err := s.run("integrations", "create", "alerts")
	require.Error(t, err)
	assert.True(t, internal.IsValidation(err))
}

func TestRunGuessesLanguage(t *testing.T) {
	var mu sync.Mutex
	var body map[string]string
	srv := newBackend(t, map[string]http.HandlerFunc{
		"POST /api/execute_code": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Unlock()
			jsonReply(map[string]any{"stdout": "hi\n", "exit_code": 0})(w, r)
		},
	})
	s := newSession(t, srv)

	dir := t.TempDir()
	script := filepath.Join(dir, "hello.py")
	require.NoError(t, os.WriteFile(script, []byte("print('hi')"), 0644))

	out := s.mustRun("run", script)
	assert.Contains(t, out, "hi")
	mu.Lock()
	assert.Equal(t, "python", body["language"])
	mu.Unlock()

	unknown := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unknown, []byte("x"), 0644))
	_, _, err := s.run("run", unknown)
	assert.True(t, internal.IsValidation(err))
}

func TestWorkspaceTerminalKeepsOutput(t *testing.T) {
	srv := newBackend(t, map[string]http.HandlerFunc{
		"POST /api/shell_exec": jsonReply(map[string]any{"output": "total 0"}),
	})
	s := newSession(t, srv)

	out := s.mustRun("workspace", "terminal")
	assert.Contains(t, out, "Terminal is empty")

	s.mustRun("workspace", "run", "ls")
	out = s.mustRun("workspace", "terminal")
	assert.Contains(t, out, "$ ls")
	assert.Contains(t, out, "total 0")
}

func TestHistoryStartsEmpty(t *testing.T) {
	s := newSession(t, nil)

	out := s.mustRun("history", "list")
	assert.Contains(t, out, "No saved chats found")

	out = s.mustRun("chat", "show")
	assert.Contains(t, out, "No messages yet")
}

// streamOnSubscribe broadcasts frames once a client asks for taskID.
func streamOnSubscribe(ws *testutil.WSServer, taskID string, frames ...[]byte) {
	want := []byte(fmt.Sprintf(`"taskId":%q`, taskID))
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			for _, f := range ws.Received() {
				if bytes.Contains(f, want) {
					for _, frame := range frames {
						_ = ws.Push(frame)
					}
					return
				}
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()
}

func TestChatSendOnlyReportsTheNewReply(t *testing.T) {
	ws := testutil.NewWSServer(t)
	var mu sync.Mutex
	calls := 0
	srv := newBackend(t, map[string]http.HandlerFunc{
		"POST /api/tasks": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			calls++
			id := fmt.Sprintf("t%d", calls)
			mu.Unlock()
			if id == "t1" {
				streamOnSubscribe(ws, id,
					testutil.Frame(t, map[string]any{"type": "output", "task_id": id, "message": `{"response":"OLD ANSWER"}`}),
					testutil.Frame(t, map[string]any{"type": "status", "task_id": id, "status": "completed"}),
				)
			} else {
				streamOnSubscribe(ws, id,
					testutil.Frame(t, map[string]any{"type": "status", "task_id": id, "status": "completed"}),
				)
			}
			jsonReply(map[string]any{"task_id": id})(w, r)
		},
	})
	s := newSession(t, srv)
	s.ws = ws.URL()
	t.Cleanup(func() { chatTimeout = 2 * time.Minute })

	out := s.mustRun("chat", "send", "--timeout", "10s", "first question")
	assert.Contains(t, out, "OLD ANSWER")

	out, _, err := s.run("chat", "send", "--timeout", "10s", "second question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without output")
	assert.NotContains(t, out, "OLD ANSWER")
}

func TestProvidersListTimeoutRaisesError(t *testing.T) {
	release := make(chan struct{})
	srv := newBackend(t, map[string]http.HandlerFunc{
		"GET /api/providers": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		},
	})
	defer close(release)
	s := newSession(t, srv)
	require.NoError(t, os.WriteFile(s.config, []byte("timeouts:\n  default: 100ms\n"), 0644))

	out, errOut, err := s.run("providers", "list")
	require.Error(t, err)
	var apiErr *internal.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Timeout())
	assert.Contains(t, errOut, "Failed to load providers")
	assert.NotContains(t, out, "Found")
}
