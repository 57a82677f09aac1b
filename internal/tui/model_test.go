package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/aetherium/aetherium-cli/internal/chat"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/aetherium/aetherium-cli/testutil"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	requests []api.CreateTaskRequest
}

func (f *fakeBackend) CreateTask(ctx context.Context, in api.CreateTaskRequest) (api.CreateTaskResponse, error) {
	f.requests = append(f.requests, in)
	return api.CreateTaskResponse{TaskID: "task-1"}, nil
}

func (f *fakeBackend) ExecuteCode(ctx context.Context, code, language string) (api.CodeResult, error) {
	return api.CodeResult{Stdout: "ran " + language}, nil
}

func (f *fakeBackend) CreateFile(ctx context.Context, in api.CreateFileInput) error { return nil }

func (f *fakeBackend) ShellExec(ctx context.Context, command string) (string, error) {
	return "ok", nil
}

func newModel(t *testing.T) (Model, *chat.Session, *notify.Broker, *realtime.State) {
	t.Helper()
	notes := notify.NewBroker()
	t.Cleanup(notes.Close)
	session := chat.New(chat.Deps{Backend: &fakeBackend{}, Notes: notes})
	state := realtime.Disconnected
	m := New(context.Background(), Options{
		Session: session,
		Notes:   notes,
		Status:  func() realtime.State { return state },
		Theme:   ThemeDark,
	})
	return m, session, notes, &state
}

func lastNote(notes *notify.Broker) string {
	list := notes.List()
	if len(list) == 0 {
		return ""
	}
	return list[len(list)-1].Message
}

func send(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestSubmitMessage(t *testing.T) {
	m, session, _, _ := newModel(t)

	m, cmd := send(t, m, "write hello world")
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value(), "input is cleared on enter")

	msg := cmd()
	done, ok := msg.(submitDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)

	turns := session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "write hello world", turns[0].Content)
	assert.True(t, turns[1].Pending())

	_, cmd = send(t, m, "   ")
	assert.Nil(t, cmd, "blank input does nothing")
}

func TestSubmitWhileAwaiting(t *testing.T) {
	m, _, notes, _ := newModel(t)
	next, _ := m.Update(submitDoneMsg{err: chat.ErrAwaiting})
	m = next.(Model)
	assert.Equal(t, "Please wait for the current response", lastNote(notes))
}

func TestSlashCommands(t *testing.T) {
	m, session, notes, _ := newModel(t)

	m, cmd := send(t, m, "/save")
	assert.Nil(t, cmd)
	assert.Equal(t, "Nothing to save yet", lastNote(notes))

	m, _ = send(t, m, "/bogus")
	assert.Equal(t, "Unknown command /bogus", lastNote(notes))

	m, _ = send(t, m, "/load")
	assert.Equal(t, "Usage: /load <chat-id>", lastNote(notes))

	m, _ = send(t, m, "/load 42")
	assert.Equal(t, "Chat not found", lastNote(notes))

	m, _ = send(t, m, "/help")
	assert.True(t, m.showHelp)
	assert.Contains(t, m.viewport.View(), "/history")

	_, cmd = send(t, m, "/quit")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = send(t, m, "/run")
	assert.Nil(t, cmd)
	assert.Equal(t, "No such code block", lastNote(notes))
	assert.Empty(t, session.SavedChats())
}

func TestRunCodeBlock(t *testing.T) {
	m, session, _, _ := newModel(t)
	_, cmd := send(t, m, "code please")
	cmd()
	session.HandleMessage(realtime.Message{
		Type:   realtime.TypeOutput,
		TaskID: "task-1",
		Text:   `{"response":"` + "```python\\nprint(1)\\n```" + `"}`,
	})
	require.False(t, session.Awaiting())

	_, cmd = send(t, m, "/run 1")
	require.NotNil(t, cmd)
	out, ok := cmd().(terminalMsg)
	require.True(t, ok)
	assert.Contains(t, string(out), "python block #1 (exit 0)")
	assert.Contains(t, string(out), "ran python")
}

func TestShellCommand(t *testing.T) {
	m, _, _, _ := newModel(t)
	m, cmd := send(t, m, "!ls -la")
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, terminalMsg("\n$ ls -la\nok"), msg)

	next, _ := m.Update(msg)
	m = next.(Model)
	assert.Len(t, m.terminal, 1)
	assert.Contains(t, m.viewport.View(), "$ ls -la")
}

func TestConnectionIndicator(t *testing.T) {
	m, _, _, state := newModel(t)
	assert.Contains(t, m.View(), "offline")

	*state = realtime.Connected
	next, cmd := m.Update(statusTickMsg{})
	assert.NotNil(t, cmd)
	assert.Contains(t, next.(Model).View(), "connected")
}

func TestEventPump(t *testing.T) {
	m, session, notes, _ := newModel(t)
	notes.Success("hello there")

	select {
	case msg := <-m.events:
		next, cmd := m.Update(msg)
		assert.NotNil(t, cmd, "pump re-arms")
		assert.Contains(t, next.(Model).View(), "hello there")
	case <-time.After(time.Second):
		t.Fatal("no event posted for the notification")
	}

	session.Clear()
	select {
	case msg := <-m.events:
		_, ok := msg.(sessionChangedMsg)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("no event posted for the session change")
	}
}

func TestRenderTurns(t *testing.T) {
	st := NewStyles(ThemeLight)
	assert.Contains(t, RenderTurns(nil, st, nil, 60, ""), "Start a conversation")

	turns := []internal.ConversationTurn{
		{Role: internal.RoleUser, Content: "run this"},
		{Role: internal.RoleAssistant, Content: "```python\nprint(1)\n```\n```go\nx\n```"},
		{Role: internal.RoleAssistant, IsStreaming: true},
	}
	out := RenderTurns(turns, st, nil, 60, "waiting")
	assert.Contains(t, out, "run this")
	assert.Contains(t, out, "message 2 code: #1 python (runnable), #2 go")
	assert.Contains(t, out, "waiting")
}

func TestFooter(t *testing.T) {
	list := []notify.Notification{
		{Message: "one", Severity: notify.Info},
		{Message: "two", Severity: notify.Success},
		{Message: strings.Repeat("x", 200), Severity: notify.Error},
	}
	out := Footer(list, 2, 40)
	assert.NotContains(t, out, "one")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], "…"))
}

func TestThemePersistence(t *testing.T) {
	store := internal.NewStore(testutil.CreateInMemoryDB(t))
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, SaveTheme(store, ThemeLight))
	assert.Equal(t, ThemeLight, LoadTheme(store))
	require.NoError(t, SaveTheme(store, Toggle(ThemeLight)))
	assert.Equal(t, ThemeDark, LoadTheme(store))
	assert.Equal(t, ThemeLight, NewStyles("light").Theme)
	assert.Equal(t, ThemeDark, NewStyles("neon").Theme)
}
