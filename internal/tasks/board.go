// Package tasks is the task orchestrator view: the server's task list,
// the selected task, and live patches from the realtime channel.
package tasks

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/aetherium/aetherium-cli/internal/api"
	"github.com/aetherium/aetherium-cli/internal/notify"
	"github.com/aetherium/aetherium-cli/internal/realtime"
	"github.com/aetherium/aetherium-cli/internal/reconcile"
)

// DefaultType is used when a task is created without a type.
const DefaultType = "development"

// Backend is the subset of the REST client the board uses.
type Backend interface {
	ListTasks(ctx context.Context, params url.Values) ([]api.TaskRecord, error)
	CreateTask(ctx context.Context, in api.CreateTaskRequest) (api.CreateTaskResponse, error)
	OrchestrateTask(ctx context.Context, id string) (api.TaskRecord, error)
}

// Channel is the subset of the realtime channel the board uses.
type Channel interface {
	Subscribe(filter realtime.Filter, handler realtime.Handler) (unsubscribe func())
	SubscribeTask(taskID string) error
}

// Board is safe for concurrent use.
type Board struct {
	backend Backend
	notes   *notify.Broker

	mu        sync.Mutex
	state     reconcile.TaskBoard
	loaded    bool
	listeners map[int]func()
	nextL     int
}

// NewBoard creates an empty board.
func NewBoard(backend Backend, notes *notify.Broker) *Board {
	if notes == nil {
		notes = notify.NewBroker()
	}
	return &Board{backend: backend, notes: notes}
}

// OnChange registers fn to run after every change.
func (b *Board) OnChange(fn func()) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]func())
	}
	id := b.nextL
	b.nextL++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *Board) changed() {
	b.mu.Lock()
	listeners := make([]func(), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Load fetches the task list. On failure the previous list is kept.
func (b *Board) Load(ctx context.Context) error {
	records, err := b.backend.ListTasks(ctx, nil)
	if err != nil {
		internal.LogWarn("load tasks: %v", err)
		b.notes.Error("Failed to load tasks")
		return err
	}
	b.mu.Lock()
	b.state.Replace(api.Records(records))
	b.loaded = true
	b.mu.Unlock()
	b.changed()
	return nil
}

// Loaded reports whether a list has been fetched at least once.
func (b *Board) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Tasks returns a copy of the task list.
func (b *Board) Tasks() []internal.TaskRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]internal.TaskRecord, len(b.state.Tasks))
	copy(out, b.state.Tasks)
	return out
}

// Select makes id the task that status and subtask frames patch.
func (b *Board) Select(id string) {
	b.mu.Lock()
	b.state.SelectedID = id
	b.mu.Unlock()
	b.changed()
}

// Selected returns the selected task, if it is in the list.
func (b *Board) Selected() (internal.TaskRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Selected()
}

// Output returns the latest decoded output for a task.
func (b *Board) Output(id string) (reconcile.Payload, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.state.Outputs[id]
	return p, ok
}

// Create submits a new task and reloads the list.
func (b *Board) Create(ctx context.Context, description, taskType string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", &internal.ValidationError{Field: "description", Message: "must not be empty"}
	}
	if taskType == "" {
		taskType = DefaultType
	}
	resp, err := b.backend.CreateTask(ctx, api.CreateTaskRequest{Description: description, Type: taskType})
	if err != nil {
		b.notes.Error("Failed to create task")
		return "", err
	}
	b.notes.Success("Task created successfully")
	_ = b.Load(ctx)
	return resp.Identifier(), nil
}

// Orchestrate starts subtask planning for id and reloads the list.
func (b *Board) Orchestrate(ctx context.Context, id string) error {
	if _, err := b.backend.OrchestrateTask(ctx, id); err != nil {
		b.notes.Error("Failed to orchestrate task")
		return err
	}
	b.notes.Success("Task orchestration started")
	_ = b.Load(ctx)
	return nil
}

// Apply routes one frame into the board. It reports whether the frame
// announced a new task, which calls for a reload.
func (b *Board) Apply(msg realtime.Message) (reload bool) {
	b.mu.Lock()
	changed := b.state.Apply(msg)
	reload = b.state.NeedsReload
	b.mu.Unlock()
	if changed {
		b.changed()
	}
	return reload
}

// Follow feeds frames from ch into the board until ctx ends, reloading the
// list whenever a task is announced. Frames are applied in arrival order
// on the calling goroutine.
func (b *Board) Follow(ctx context.Context, ch Channel) error {
	frames := make(chan realtime.Message, 64)
	unsubscribe := ch.Subscribe(realtime.Filter{
		Types: []string{realtime.TypeTaskCreated, realtime.TypeStatus, realtime.TypeSubtasks, realtime.TypeOutput},
	}, func(msg realtime.Message) {
		select {
		case frames <- msg:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-frames:
			if b.Apply(msg) {
				_ = b.Load(ctx)
			}
		}
	}
}

// Watch selects id, asks the server to stream it, and follows ch until the
// task reaches a terminal status or ctx ends.
func (b *Board) Watch(ctx context.Context, ch Channel, id string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.Select(id)
	remove := b.OnChange(func() {
		if t, ok := b.Selected(); ok && t.Terminal() {
			cancel()
		}
	})
	defer remove()
	if err := ch.SubscribeTask(id); err != nil {
		internal.LogWarn("subscribe_task %s not sent: %v", id, err)
	}
	if t, ok := b.Selected(); ok && t.Terminal() {
		return nil
	}

	err := b.Follow(ctx, ch)
	if t, ok := b.Selected(); ok && t.Terminal() {
		return nil
	}
	return err
}
