// Package chat implements the conversation view: submitting messages as
// backend tasks, routing streamed output into the log, and chat history.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/aetherium/aetherium-cli/internal/logstore"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/aetherium/aetherium-cli/internal/reconcile"
	"github.com/atotto/clipboard"
)

const (
	// HistoryTurns is how many prior turns accompany a new message.
	HistoryTurns = 10
	// MaxSavedChats caps the history list.
	MaxSavedChats = 50
)

// ErrAwaiting is returned by Submit while the previous message is unanswered.
var ErrAwaiting = errors.New("still waiting for the previous response")

// ErrChatNotFound is returned when a saved chat id is unknown.
var ErrChatNotFound = errors.New("chat not found")

// Backend is the subset of the REST client the chat view uses.
type Backend interface {
	CreateTask(ctx context.Context, in api.CreateTaskRequest) (api.CreateTaskResponse, error)
	ExecuteCode(ctx context.Context, code, language string) (api.CodeResult, error)
	CreateFile(ctx context.Context, in api.CreateFileInput) error
	ShellExec(ctx context.Context, command string) (string, error)
}

// Channel is the subset of the realtime channel the chat view uses.
type Channel interface {
	Subscribe(filter realtime.Filter, handler realtime.Handler) (unsubscribe func())
	SubscribeTask(taskID string) error
}

// Deps are the collaborators a Session is built from. Notes and Logs are
// created when nil.
type Deps struct {
	Backend Backend
	Channel Channel
	Store   *internal.Store
	Notes   *notify.Broker
	Logs    *logstore.Store
}

// Session holds one chat view's state. Methods are safe to call from the
// UI goroutine while the channel delivers frames on its own goroutine.
type Session struct {
	backend Backend
	channel Channel
	store   *internal.Store
	notes   *notify.Broker
	logs    *logstore.Store
	now     func() time.Time
	copy    func(string) error

	mu          sync.Mutex
	conv        reconcile.Conversation
	chatID      string
	saved       []internal.SavedChat
	listeners   []func()
	unsubscribe func()
}

// New restores the persisted conversation and history from deps.Store.
// Unreadable state is logged and treated as empty.
func New(deps Deps) *Session {
	s := &Session{
		backend: deps.Backend,
		channel: deps.Channel,
		store:   deps.Store,
		notes:   deps.Notes,
		logs:    deps.Logs,
		now:     time.Now,
		copy:    clipboard.WriteAll,
	}
	if s.notes == nil {
		s.notes = notify.NewBroker()
	}
	if s.logs == nil {
		s.logs = logstore.New()
	}
	if s.store != nil {
		var turns []internal.ConversationTurn
		if _, err := s.store.GetJSON(internal.KeyChatMessages, &turns); err != nil {
			s.logs.Warn("Failed to load chat messages", map[string]any{"error": err.Error()})
		}
		s.conv.Reset(turns)
		if _, err := s.store.GetJSON(internal.KeySavedChats, &s.saved); err != nil {
			s.logs.Warn("Failed to load saved chats", map[string]any{"error": err.Error()})
			s.saved = nil
		}
	}
	return s
}

// OnChange registers fn to run after every state change.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) changed() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Attach starts routing task frames from the channel into the session.
func (s *Session) Attach() {
	if s.channel == nil {
		return
	}
	unsub := s.channel.Subscribe(realtime.Filter{
		Types: []string{realtime.TypeTaskCreated, realtime.TypeOutput, realtime.TypeStatus},
	}, s.HandleMessage)

	s.mu.Lock()
	prev := s.unsubscribe
	s.unsubscribe = unsub
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Detach stops routing frames. Frames arriving afterwards are ignored.
func (s *Session) Detach() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// HandleMessage applies one realtime frame.
func (s *Session) HandleMessage(msg realtime.Message) {
	s.mu.Lock()
	changed := s.conv.Apply(msg)
	if changed {
		s.persistLocked()
	}
	s.mu.Unlock()
	if changed {
		s.changed()
	}
}

// Turns returns a copy of the conversation.
func (s *Session) Turns() []internal.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return internal.CloneTurns(s.conv.Turns)
}

// Awaiting reports whether a submission is unanswered.
func (s *Session) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Awaiting
}

// ActiveTaskID returns the task the view is waiting on.
func (s *Session) ActiveTaskID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.ActiveTaskID
}

// ChatID returns the history id of the current chat, empty until saved.
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Submit sends text as a chat task. Only one submission may be in flight;
// a second call before the answer arrives returns ErrAwaiting.
func (s *Session) Submit(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return &internal.ValidationError{Field: "message", Message: "must not be empty"}
	}

	s.mu.Lock()
	if s.conv.Awaiting {
		s.mu.Unlock()
		return ErrAwaiting
	}
	history := s.conv.History(HistoryTurns)
	s.conv.Append(internal.ConversationTurn{
		Role:      internal.RoleUser,
		Content:   content,
		Timestamp: s.now(),
	})
	s.conv.Awaiting = true
	s.conv.ActiveTaskID = ""
	s.persistLocked()
	s.mu.Unlock()
	s.changed()

	s.logs.LogUserAction("chat_message_sent", map[string]any{
		"messageLength": len(content),
		"wordCount":     len(strings.Split(content, " ")),
	})

	resp, err := s.backend.CreateTask(ctx, api.CreateTaskRequest{
		Description: content,
		Type:        "chat",
		Context:     map[string]any{"conversation_history": historyPayload(history)},
	})
	if err != nil {
		// The task may still have been created; task_created will claim
		// the placeholder.
		s.logs.LogError(err, map[string]any{"context": "chat_message_send", "message": content})
		s.mu.Lock()
		s.conv.Append(s.placeholder(s.conv.ActiveTaskID))
		s.persistLocked()
		s.mu.Unlock()
		s.changed()
		return nil
	}

	taskID := resp.Identifier()
	s.logs.LogUserAction("task_created", map[string]any{"taskId": taskID, "description": content})

	s.mu.Lock()
	s.conv.ActiveTaskID = taskID
	if resp.Direct() {
		s.conv.Append(internal.ConversationTurn{
			Role:      internal.RoleAssistant,
			Content:   resp.Response,
			Timestamp: s.now(),
			TaskID:    taskID,
		})
		s.conv.Awaiting = false
		s.persistLocked()
		s.mu.Unlock()
		s.changed()
		return nil
	}
	s.conv.Append(s.placeholder(taskID))
	autoSave := len(s.conv.Turns) == 2
	s.persistLocked()
	s.mu.Unlock()
	s.changed()

	if autoSave {
		s.SaveCurrent()
	}
	if taskID == "" {
		internal.LogError("No taskId available for subscription")
		return nil
	}
	if s.channel != nil {
		if err := s.channel.SubscribeTask(taskID); err != nil {
			internal.LogWarn("subscribe_task %s not sent: %v", taskID, err)
		}
	}
	return nil
}

// StopWaiting releases the submission lock without touching the log.
func (s *Session) StopWaiting() {
	s.mu.Lock()
	was := s.conv.Awaiting
	s.conv.Awaiting = false
	s.mu.Unlock()
	if was {
		s.changed()
	}
}

func (s *Session) placeholder(taskID string) internal.ConversationTurn {
	return internal.ConversationTurn{
		Role:        internal.RoleAssistant,
		Timestamp:   s.now(),
		TaskID:      taskID,
		IsStreaming: true,
	}
}

func historyPayload(turns []internal.ConversationTurn) []map[string]any {
	out := make([]map[string]any, 0, len(turns))
	for _, t := range turns {
		out = append(out, map[string]any{
			"role":      t.Role,
			"content":   t.Content,
			"timestamp": t.Timestamp,
		})
	}
	return out
}

func (s *Session) persistLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.SetJSON(internal.KeyChatMessages, s.conv.Turns); err != nil {
		internal.LogWarn("Failed to save chat messages: %v", err)
	}
}
