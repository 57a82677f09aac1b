package realtime

import (
	"sort"
	"sync/atomic"
)

// Handler receives a message on the channel's reader goroutine. Handlers
// run one at a time in arrival order and must not block for long.
type Handler func(Message)

// Filter selects messages by type and/or task id. Empty fields match
// everything.
type Filter struct {
	Types  []string
	TaskID string
}

// Matches reports whether msg passes the filter.
func (f Filter) Matches(msg Message) bool {
	if f.TaskID != "" && msg.TaskID != f.TaskID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == msg.Type {
			return true
		}
	}
	return false
}

type subscription struct {
	filter  Filter
	handler Handler
	closed  atomic.Bool
}

func (s *subscription) active() bool { return !s.closed.Load() }

// Subscribe registers handler for messages arriving after the call that
// match filter. The returned function removes the subscription; once it
// returns the handler is not invoked for later messages.
func (c *Channel) Subscribe(filter Filter, handler Handler) (unsubscribe func()) {
	sub := &subscription{filter: filter, handler: handler}

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	c.mu.Unlock()

	return func() {
		sub.closed.Store(true)
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Subscribers returns the number of active subscriptions.
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func sortedKeys(m map[int]*subscription) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
