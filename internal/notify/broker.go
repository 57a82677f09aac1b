// Package notify holds the transient user-facing notifications shown by the
// chat view and printed by commands.
package notify

import (
	"sync"
	"time"
)

// Severity selects how a notification is presented.
type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Normalize maps unrecognized severities to Info.
func (s Severity) Normalize() Severity {
	switch s {
	case Success, Error, Warning, Info:
		return s
	default:
		return Info
	}
}

// DefaultDuration is how long a notification stays unless told otherwise.
const DefaultDuration = 5 * time.Second

// Notification is one message in the broker's list.
type Notification struct {
	ID       int64
	Message  string
	Severity Severity
	Duration time.Duration
	Created  time.Time
}

// Sticky reports whether the notification only goes away when dismissed.
func (n Notification) Sticky() bool { return n.Duration <= 0 }

// Broker owns the list of live notifications and their expiry timers.
type Broker struct {
	mu        sync.Mutex
	items     []Notification
	timers    map[int64]*time.Timer
	listeners map[int]func([]Notification)
	nextL     int
	lastID    int64
	closed    bool
	now       func() time.Time
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		timers:    make(map[int64]*time.Timer),
		listeners: make(map[int]func([]Notification)),
		now:       time.Now,
	}
}

// Notify adds a notification and returns its id. A positive duration
// schedules automatic removal; zero or negative makes it sticky.
func (b *Broker) Notify(message string, severity Severity, duration time.Duration) int64 {
	b.mu.Lock()
	now := b.now()
	id := now.UnixMilli()
	if id <= b.lastID {
		id = b.lastID + 1
	}
	b.lastID = id

	n := Notification{ID: id, Message: message, Severity: severity, Duration: duration, Created: now}
	b.items = append(b.items, n)
	if duration > 0 && !b.closed {
		b.timers[id] = time.AfterFunc(duration, func() { b.Dismiss(id) })
	}
	snapshot, listeners := b.snapshotLocked()
	b.mu.Unlock()

	notifyListeners(listeners, snapshot)
	return id
}

// Success adds a success notification with the default duration.
func (b *Broker) Success(message string) int64 { return b.Notify(message, Success, DefaultDuration) }

// Error adds an error notification with the default duration.
func (b *Broker) Error(message string) int64 { return b.Notify(message, Error, DefaultDuration) }

// Warning adds a warning notification with the default duration.
func (b *Broker) Warning(message string) int64 { return b.Notify(message, Warning, DefaultDuration) }

// Info adds an info notification with the default duration.
func (b *Broker) Info(message string) int64 { return b.Notify(message, Info, DefaultDuration) }

// Dismiss removes a notification. Unknown or already removed ids are ignored.
func (b *Broker) Dismiss(id int64) {
	b.mu.Lock()
	idx := -1
	for i, n := range b.items {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return
	}
	b.items = append(b.items[:idx:idx], b.items[idx+1:]...)
	if timer, ok := b.timers[id]; ok {
		timer.Stop()
		delete(b.timers, id)
	}
	snapshot, listeners := b.snapshotLocked()
	b.mu.Unlock()

	notifyListeners(listeners, snapshot)
}

// List returns the live notifications, oldest first.
func (b *Broker) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.items))
	copy(out, b.items)
	return out
}

// OnChange registers fn to receive the list after every change.
func (b *Broker) OnChange(fn func([]Notification)) (remove func()) {
	b.mu.Lock()
	id := b.nextL
	b.nextL++
	b.listeners[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Close stops all pending expiry timers. Notifications already in the list
// stay until dismissed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, timer := range b.timers {
		timer.Stop()
		delete(b.timers, id)
	}
}

func (b *Broker) snapshotLocked() ([]Notification, []func([]Notification)) {
	snapshot := make([]Notification, len(b.items))
	copy(snapshot, b.items)
	listeners := make([]func([]Notification), 0, len(b.listeners))
	for i := 0; i < b.nextL; i++ {
		if fn, ok := b.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	return snapshot, listeners
}

func notifyListeners(listeners []func([]Notification), snapshot []Notification) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
