package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/aetherium/aetherium-cli/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	requests  []api.CreateTaskRequest
	resp      api.CreateTaskResponse
	createErr error
	during    func()
	files     []api.CreateFileInput
	fileErr   error
	code      api.CodeResult
	codeErr   error
	shellOut  string
	shellErr  error
}

func (f *fakeBackend) CreateTask(ctx context.Context, in api.CreateTaskRequest) (api.CreateTaskResponse, error) {
	if f.during != nil {
		f.during()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, in)
	return f.resp, f.createErr
}

func (f *fakeBackend) ExecuteCode(ctx context.Context, code, language string) (api.CodeResult, error) {
	return f.code, f.codeErr
}

func (f *fakeBackend) CreateFile(ctx context.Context, in api.CreateFileInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, in)
	return f.fileErr
}

func (f *fakeBackend) ShellExec(ctx context.Context, command string) (string, error) {
	return f.shellOut, f.shellErr
}

type fakeChannel struct {
	mu         sync.Mutex
	subscribed []string
	handlers   []realtime.Handler
	sendErr    error
}

func (f *fakeChannel) Subscribe(filter realtime.Filter, handler realtime.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, func(m realtime.Message) {
		if filter.Matches(m) {
			handler(m)
		}
	})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers = nil
	}
}

func (f *fakeChannel) SubscribeTask(taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, taskID)
	return f.sendErr
}

func (f *fakeChannel) deliver(t *testing.T, frame []byte) {
	t.Helper()
	msg, err := realtime.Decode(frame)
	require.NoError(t, err)
	f.mu.Lock()
	handlers := append([]realtime.Handler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

type harness struct {
	session *Session
	backend *fakeBackend
	channel *fakeChannel
	store   *internal.Store
	notes   *notify.Broker
	copied  []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: &fakeBackend{},
		channel: &fakeChannel{},
		store:   internal.NewStore(testutil.CreateInMemoryDB(t)),
		notes:   notify.NewBroker(),
	}
	t.Cleanup(h.notes.Close)
	t.Cleanup(func() { _ = h.store.Close() })
	h.session = h.open()
	return h
}

// open builds a session over the harness store, as a restart would.
func (h *harness) open() *Session {
	s := New(Deps{Backend: h.backend, Channel: h.channel, Store: h.store, Notes: h.notes})
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	s.copy = func(text string) error {
		h.copied = append(h.copied, text)
		return nil
	}
	s.Attach()
	return s
}

func (h *harness) messages() []string {
	var out []string
	for _, n := range h.notes.List() {
		out = append(out, string(n.Severity)+": "+n.Message)
	}
	return out
}

func TestSubmit_CreatesTaskAndSubscribes(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}

	require.NoError(t, h.session.Submit(context.Background(), "  hello  "))

	turns := h.session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, internal.RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.True(t, turns[1].Pending())
	assert.Equal(t, "abc", turns[1].TaskID)
	assert.Equal(t, "", turns[1].Content)

	assert.Equal(t, []string{"abc"}, h.channel.subscribed)
	assert.True(t, h.session.Awaiting())
	assert.Equal(t, "abc", h.session.ActiveTaskID())

	require.Len(t, h.backend.requests, 1)
	req := h.backend.requests[0]
	assert.Equal(t, "hello", req.Description)
	assert.Equal(t, "chat", req.Type)
	assert.Empty(t, req.Context["conversation_history"])
}

func TestSubmit_ErrorOutputCompletesTurn(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}
	require.NoError(t, h.session.Submit(context.Background(), "hello"))

	h.channel.deliver(t, testutil.Frame(t, map[string]any{
		"type": "output", "task_id": "abc", "message": `{"error":"boom"}`,
	}))

	turns := h.session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "boom", turns[1].Content)
	assert.False(t, turns[1].IsStreaming)
	assert.False(t, h.session.Awaiting())

	// Persisted after the mutation.
	var stored []internal.ConversationTurn
	ok, err := h.store.GetJSON(internal.KeyChatMessages, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "boom", stored[1].Content)
}

func TestSubmit_RejectsEmptyAndConcurrent(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}

	err := h.session.Submit(context.Background(), "   ")
	assert.True(t, internal.IsValidation(err))
	assert.Empty(t, h.backend.requests)

	require.NoError(t, h.session.Submit(context.Background(), "first"))
	assert.ErrorIs(t, h.session.Submit(context.Background(), "second"), ErrAwaiting)
	assert.Len(t, h.backend.requests, 1)
	assert.Len(t, h.session.Turns(), 2)

	h.channel.deliver(t, testutil.Frame(t, map[string]any{"type": "status", "task_id": "abc", "status": "completed"}))
	assert.False(t, h.session.Awaiting())
	require.NoError(t, h.session.Submit(context.Background(), "second"))
	assert.Len(t, h.backend.requests, 2)
}

func TestSubmit_SendsLastTenTurnsAsHistory(t *testing.T) {
	h := newHarness(t)
	var turns []internal.ConversationTurn
	for i := 0; i < 12; i++ {
		turns = append(turns, internal.ConversationTurn{Role: internal.RoleUser, Content: fmt.Sprint(i)})
	}
	require.NoError(t, h.store.SetJSON(internal.KeyChatMessages, turns))
	s := h.open()
	h.backend.resp = api.CreateTaskResponse{ID: "7"}

	require.NoError(t, s.Submit(context.Background(), "next"))

	history, ok := h.backend.requests[0].Context["conversation_history"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, history, HistoryTurns)
	assert.Equal(t, "2", history[0]["content"])
	assert.Equal(t, "11", history[9]["content"])
	assert.Equal(t, []string{"7"}, h.channel.subscribed)
}

func TestSubmit_DirectReply(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "t1", Response: "hi there", Type: "chat"}

	require.NoError(t, h.session.Submit(context.Background(), "hello"))

	turns := h.session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "hi there", turns[1].Content)
	assert.False(t, turns[1].IsStreaming)
	assert.False(t, h.session.Awaiting())
	assert.Empty(t, h.channel.subscribed)
	assert.Empty(t, h.session.SavedChats(), "direct replies are not auto-saved")
}

func TestSubmit_CreateFailureWaitsForTaskCreated(t *testing.T) {
	h := newHarness(t)
	h.backend.createErr = &internal.APIError{Method: "POST", Path: "/tasks", Err: context.DeadlineExceeded}

	require.NoError(t, h.session.Submit(context.Background(), "hello"))
	turns := h.session.Turns()
	require.Len(t, turns, 2)
	assert.True(t, turns[1].Pending())
	assert.Empty(t, turns[1].TaskID)
	assert.Empty(t, h.channel.subscribed)
	assert.Empty(t, h.notes.List(), "failures are not surfaced")

	h.channel.deliver(t, testutil.FrameCreated)
	assert.Equal(t, "task-2", h.session.ActiveTaskID())
	assert.Equal(t, "task-2", h.session.Turns()[1].TaskID)

	h.channel.deliver(t, testutil.Frame(t, map[string]any{
		"type": "output", "task_id": "task-2", "message": `{"explanatory_summary":"done"}`,
	}))
	assert.Equal(t, "done", h.session.Turns()[1].Content)
	assert.False(t, h.session.Awaiting())
}

func TestSubmit_CreateFailureKeepsAdoptedTask(t *testing.T) {
	h := newHarness(t)
	h.backend.createErr = &internal.APIError{Method: "POST", Path: "/tasks", Err: context.DeadlineExceeded}
	h.backend.during = func() { h.channel.deliver(t, testutil.FrameCreated) }

	require.NoError(t, h.session.Submit(context.Background(), "hello"))
	assert.Equal(t, "task-2", h.session.ActiveTaskID())
	turns := h.session.Turns()
	require.Len(t, turns, 2)
	assert.True(t, turns[1].Pending())
	assert.Equal(t, "task-2", turns[1].TaskID)

	h.channel.deliver(t, testutil.Frame(t, map[string]any{
		"type": "output", "task_id": "task-2", "message": `{"response":"late but here"}`,
	}))
	assert.Equal(t, "late but here", h.session.Turns()[1].Content)
	assert.False(t, h.session.Turns()[1].Pending())
}

func TestSubmit_AutoSavesFirstExchange(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}

	require.NoError(t, h.session.Submit(context.Background(), "hello"))

	saved := h.session.SavedChats()
	require.Len(t, saved, 1)
	assert.Equal(t, "hello", saved[0].Title)
	assert.Equal(t, saved[0].ID, h.session.ChatID())
	assert.Contains(t, h.messages(), "success: Chat saved to history")
}

func TestSubscribeFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}
	h.channel.sendErr = realtime.ErrNotConnected

	assert.NoError(t, h.session.Submit(context.Background(), "hello"))
	assert.True(t, h.session.Turns()[1].Pending())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}
	require.NoError(t, h.session.Submit(context.Background(), "hello"))
	h.channel.deliver(t, testutil.Frame(t, map[string]any{
		"type": "output", "task_id": "abc", "message": `{"response":"hi"}`,
	}))
	require.True(t, h.session.SaveCurrent())
	want := h.session.Turns()
	id := h.session.ChatID()

	h.session.Clear()
	assert.Empty(t, h.session.Turns())
	assert.Empty(t, h.session.ChatID())

	// A fresh session over the same store sees the saved history.
	reopened := h.open()
	require.NoError(t, reopened.LoadChat(id))
	if diff := cmp.Diff(want, reopened.Turns()); diff != "" {
		t.Errorf("loaded chat mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, id, reopened.ChatID())
	assert.ErrorIs(t, reopened.LoadChat("missing"), ErrChatNotFound)
}

func TestSaveCurrent(t *testing.T) {
	t.Run("empty conversation", func(t *testing.T) {
		h := newHarness(t)
		assert.False(t, h.session.SaveCurrent())
		assert.Empty(t, h.session.SavedChats())
	})

	t.Run("resave replaces and moves to front", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.SetJSON(internal.KeySavedChats, []internal.SavedChat{{ID: "old", Title: "old"}}))
		require.NoError(t, h.store.SetJSON(internal.KeyChatMessages, []internal.ConversationTurn{{Role: internal.RoleUser, Content: "x"}}))
		s := h.open()

		require.True(t, s.SaveCurrent())
		require.True(t, s.SaveCurrent())
		saved := s.SavedChats()
		require.Len(t, saved, 2)
		assert.Equal(t, s.ChatID(), saved[0].ID)
		assert.Equal(t, "old", saved[1].ID)
	})

	t.Run("capped at fifty", func(t *testing.T) {
		h := newHarness(t)
		var existing []internal.SavedChat
		for i := 0; i < MaxSavedChats; i++ {
			existing = append(existing, internal.SavedChat{ID: fmt.Sprint(i)})
		}
		require.NoError(t, h.store.SetJSON(internal.KeySavedChats, existing))
		require.NoError(t, h.store.SetJSON(internal.KeyChatMessages, []internal.ConversationTurn{{Role: internal.RoleUser, Content: "new"}}))
		s := h.open()

		require.True(t, s.SaveCurrent())
		saved := s.SavedChats()
		require.Len(t, saved, MaxSavedChats)
		assert.Equal(t, "new", saved[0].Title)
		assert.Equal(t, "48", saved[len(saved)-1].ID)
	})
}

func TestDeleteAndStartNew(t *testing.T) {
	h := newHarness(t)
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}
	require.NoError(t, h.session.Submit(context.Background(), "hello"))
	id := h.session.ChatID()

	h.session.StopWaiting()
	h.session.StartNew()
	assert.Empty(t, h.session.Turns())
	assert.Empty(t, h.session.ChatID())
	require.Len(t, h.session.SavedChats(), 1)

	h.session.DeleteChat(id)
	h.session.DeleteChat(id)
	assert.Empty(t, h.session.SavedChats())
	assert.Contains(t, h.messages(), "success: Chat deleted")

	_, ok, err := h.store.Get(internal.KeyChatMessages)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorruptStateStartsEmpty(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	testutil.InsertKV(t, db, internal.KeyChatMessages, "{not json")
	testutil.InsertKV(t, db, internal.KeySavedChats, "[[")
	store := internal.NewStore(db)
	defer store.Close()

	s := New(Deps{Backend: &fakeBackend{}, Store: store})
	defer s.notes.Close()
	assert.Empty(t, s.Turns())
	assert.Empty(t, s.SavedChats())
}

func TestAttachWithRealtimeChannel(t *testing.T) {
	h := newHarness(t)
	ch := realtime.New("ws://127.0.0.1:1/ws")
	defer ch.Close()
	h.backend.resp = api.CreateTaskResponse{TaskID: "task-1"}

	s := New(Deps{Backend: h.backend, Channel: ch, Store: h.store, Notes: h.notes})
	s.Attach()
	require.NoError(t, s.Submit(context.Background(), "hello"))

	require.True(t, ch.Ingest(testutil.FrameOutput))
	assert.Equal(t, "hello", s.Turns()[1].Content)

	s.Detach()
	assert.Equal(t, 0, ch.Subscribers())
}

func TestOnChange(t *testing.T) {
	h := newHarness(t)
	var calls int
	h.session.OnChange(func() { calls++ })
	h.backend.resp = api.CreateTaskResponse{TaskID: "abc"}

	require.NoError(t, h.session.Submit(context.Background(), "hello"))
	assert.GreaterOrEqual(t, calls, 2)

	before := calls
	h.channel.deliver(t, testutil.Frame(t, map[string]any{"type": "output", "task_id": "zzz", "message": "x"}))
	// Output for an unknown task still ends the wait.
	assert.Equal(t, before+1, calls)
	h.channel.deliver(t, testutil.Frame(t, map[string]any{"type": "status", "task_id": "zzz", "status": "running"}))
	assert.Equal(t, before+1, calls)
}

func TestActions(t *testing.T) {
	ctx := context.Background()

	t.Run("export rejects empty filename before the network", func(t *testing.T) {
		h := newHarness(t)
		err := h.session.ExportCode(ctx, "  ", "", "print(1)")
		assert.True(t, internal.IsValidation(err))
		assert.Empty(t, h.backend.files)
		assert.Equal(t, []string{"error: Filename is required"}, h.messages())
	})

	t.Run("export conflict", func(t *testing.T) {
		h := newHarness(t)
		h.backend.fileErr = &internal.APIError{Status: 409, Err: errors.New("Conflict")}
		assert.Error(t, h.session.ExportCode(ctx, "a.py", "", "print(1)"))
		assert.Equal(t, []string{"error: File already exists. Please choose a different filename."}, h.messages())
	})

	t.Run("export other failure", func(t *testing.T) {
		h := newHarness(t)
		h.backend.fileErr = &internal.APIError{Status: 500, Err: errors.New("Internal Server Error")}
		assert.Error(t, h.session.ExportCode(ctx, "a.py", "", "print(1)"))
		assert.Equal(t, []string{"error: Failed to export code to workspace"}, h.messages())
	})

	t.Run("export success", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.session.ExportCode(ctx, " a.py ", " src ", "print(1)"))
		assert.Equal(t, []api.CreateFileInput{{Filename: "a.py", Path: "src", Content: "print(1)"}}, h.backend.files)
		assert.Equal(t, []string{"success: Code exported to workspace as a.py"}, h.messages())
	})

	t.Run("copy conversation", func(t *testing.T) {
		h := newHarness(t)
		h.backend.resp = api.CreateTaskResponse{TaskID: "t", Response: "hi", Type: "chat"}
		require.NoError(t, h.session.Submit(ctx, "hello"))
		require.NoError(t, h.session.CopyConversation())
		require.NoError(t, h.session.CopyMessage(1))
		assert.Equal(t, []string{"User: hello\n\nAssistant: hi", "hi"}, h.copied)
		assert.True(t, internal.IsValidation(h.session.CopyMessage(5)))
	})

	t.Run("copy failure", func(t *testing.T) {
		h := newHarness(t)
		h.session.copy = func(string) error { return errors.New("no clipboard") }
		assert.Error(t, h.session.CopyText("x"))
		assert.Equal(t, []string{"error: Failed to copy to clipboard. Please try selecting and copying manually."}, h.messages())
	})

	t.Run("run code", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.session.RunCode(ctx, "x", "ruby")
		assert.True(t, internal.IsValidation(err))

		h.backend.code = api.CodeResult{Stdout: "1\n"}
		res, err := h.session.RunCode(ctx, "print(1)", "Python")
		require.NoError(t, err)
		assert.Equal(t, "1\n", res.Stdout)

		h.backend.codeErr = errors.New("sandbox down")
		res, err = h.session.RunCode(ctx, "print(1)", "py")
		assert.Error(t, err)
		assert.Equal(t, 1, res.ExitCode)
		assert.Equal(t, "sandbox down", res.Stderr)
	})

	t.Run("shell", func(t *testing.T) {
		h := newHarness(t)
		assert.Equal(t, "", h.session.Shell(ctx, "  "))
		h.backend.shellOut = "file.txt"
		assert.Equal(t, "\n$ ls\nfile.txt", h.session.Shell(ctx, "ls"))
		h.backend.shellErr = &internal.APIError{Status: 403, Detail: "not allowed"}
		assert.Equal(t, "\n$ rm x\nError: not allowed", h.session.Shell(ctx, "rm x"))
		h.backend.shellErr = errors.New("offline")
		assert.Equal(t, "\n$ ls\nError: Command failed", h.session.Shell(ctx, "ls"))
	})
}
