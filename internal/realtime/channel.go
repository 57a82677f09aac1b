package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send while the connection is down.
var ErrNotConnected = errors.New("realtime: not connected")

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Diagnostics receives the channel's lifecycle and traffic events.
type Diagnostics interface {
	LogWebSocketMessage(event string, data map[string]any)
}

type nopDiagnostics struct{}

func (nopDiagnostics) LogWebSocketMessage(string, map[string]any) {}

const rawPreviewLength = 200

// EndpointFor derives the websocket endpoint. In development the endpoint
// sits on the dashboard's own origin; otherwise the backend is local.
func EndpointFor(origin string, dev bool) string {
	if !dev {
		return "ws://localhost:8000/ws"
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return "ws://localhost:8000/ws"
	}
	scheme := "ws"
	if u.Scheme == "https" || u.Scheme == "wss" {
		scheme = "wss"
	}
	return scheme + "://" + u.Host + "/ws"
}

// Option configures a Channel.
type Option func(*Channel)

// WithBackoff overrides the reconnection delays.
func WithBackoff(b Backoff) Option {
	return func(c *Channel) { c.backoff = b }
}

// WithDiagnostics routes connection events to d.
func WithDiagnostics(d Diagnostics) Option {
	return func(c *Channel) {
		if d != nil {
			c.diag = d
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// Channel owns one persistent websocket connection. Received frames are
// appended to an ordered log and fanned out to subscribers.
type Channel struct {
	url     string
	backoff Backoff
	diag    Diagnostics
	dialer  *websocket.Dialer
	now     func() time.Time

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	messages []Message
	subs     map[int]*subscription
	nextSub  int

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Channel for the given endpoint. Nothing is dialed until Run.
func New(endpoint string, opts ...Option) *Channel {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	c := &Channel{
		url:     endpoint,
		backoff: DefaultBackoff,
		diag:    nopDiagnostics{},
		dialer:  &dialer,
		now:     time.Now,
		subs:    make(map[int]*subscription),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint the channel dials.
func (c *Channel) URL() string { return c.url }

// Run keeps the connection open, reconnecting with backoff, until ctx is
// cancelled or Close is called.
func (c *Channel) Run(ctx context.Context) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.diag.LogWebSocketMessage("connection_error", map[string]any{"error": err.Error(), "url": c.url})
			internal.LogDebug("websocket dial failed: %v", err)
		} else {
			attempt = 0
			c.serve(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-time.After(c.backoff.Delay(attempt)):
		}
		attempt++
	}
}

func (c *Channel) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = Connected
	c.mu.Unlock()
	c.diag.LogWebSocketMessage("connection_opened", map[string]any{"url": c.url})

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		case <-stop:
		}
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			case <-c.done:
			default:
				c.diag.LogWebSocketMessage("connection_error", map[string]any{"error": err.Error()})
			}
			break
		}
		c.Ingest(data)
	}
	close(stop)

	c.mu.Lock()
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()
	c.diag.LogWebSocketMessage("connection_closed", map[string]any{"url": c.url})
}

// Ingest processes one raw frame as if it had arrived on the connection.
// Invalid JSON is logged and dropped; it reports whether the frame was kept.
func (c *Channel) Ingest(data []byte) bool {
	msg, err := Decode(data)
	if err != nil {
		raw := string(data)
		if len(raw) > rawPreviewLength {
			raw = raw[:rawPreviewLength]
		}
		c.diag.LogWebSocketMessage("message_parse_error", map[string]any{"error": err.Error(), "rawData": raw})
		return false
	}
	msg.ReceivedAt = c.now()
	c.diag.LogWebSocketMessage("message_received", map[string]any{"type": msg.Type, "messageLength": len(data)})

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	subs := make([]*subscription, 0, len(c.subs))
	for _, id := range sortedKeys(c.subs) {
		subs = append(subs, c.subs[id])
	}
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.active() && sub.filter.Matches(msg) {
			sub.handler(msg)
		}
	}
	return true
}

// Send encodes v as JSON and writes it if the connection is open. While
// disconnected the message is dropped and ErrNotConnected returned.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msgType := ""
	if decoded, err := Decode(data); err == nil {
		msgType = decoded.Type
	}

	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if conn == nil {
		c.diag.LogWebSocketMessage("message_send_failed", map[string]any{"type": msgType, "readyState": state.String()})
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.diag.LogWebSocketMessage("message_send_failed", map[string]any{"type": msgType, "error": err.Error()})
		return err
	}
	c.diag.LogWebSocketMessage("message_sent", map[string]any{"type": msgType, "messageLength": len(data)})
	return nil
}

// SubscribeTask asks the server to stream updates for taskID.
func (c *Channel) SubscribeTask(taskID string) error {
	return c.Send(map[string]string{"type": TypeSubscribeTask, "taskId": taskID})
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a snapshot of every frame received so far.
func (c *Channel) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of frames received so far.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Since returns frames at or after cursor and the cursor for the next call.
func (c *Channel) Since(cursor int) ([]Message, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(c.messages) {
		return nil, len(c.messages)
	}
	out := make([]Message, len(c.messages)-cursor)
	copy(out, c.messages[cursor:])
	return out, len(c.messages)
}

// Close stops Run; the serving goroutine drops the connection. It is safe
// to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}
