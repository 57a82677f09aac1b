// Package logstore keeps the client's own diagnostic log: a bounded
// in-memory buffer that ships warnings and errors to the backend.
package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/aetherium/aetherium-cli/internal"
	"github.com/google/uuid"
)

const (
	// MaxEntries is the default buffer capacity.
	MaxEntries = 1000
	// DefaultRecent is the number of entries Recent returns for limit <= 0.
	DefaultRecent = 100

	uploadTimeout = 10 * time.Second
)

// Entry is one recorded event.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	UserAgent string         `json:"userAgent"`
	URL       string         `json:"url"`
	SessionID string         `json:"sessionId"`
}

// Uploader ships an entry to the backend's log ingestion endpoint.
type Uploader interface {
	SubmitLog(ctx context.Context, entry Entry) error
}

// Option configures a Store.
type Option func(*Store)

// WithUploader enables best-effort upload of WARN and ERROR entries.
func WithUploader(u Uploader) Option {
	return func(s *Store) { s.uploader = u }
}

// WithCapacity overrides MaxEntries.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.max = n
		}
	}
}

// WithUserAgent sets the user agent stamped on entries.
func WithUserAgent(ua string) Option {
	return func(s *Store) { s.userAgent = ua }
}

// Store is the bounded log buffer. It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	entries   []Entry
	max       int
	level     Level
	url       string
	userAgent string
	sessionID string
	uploader  Uploader
	closed    bool
	uploads   sync.WaitGroup
	now       func() time.Time
}

// New creates a Store at INFO level with a fresh session id.
func New(opts ...Option) *Store {
	s := &Store{
		max:       MaxEntries,
		level:     LevelInfo,
		url:       "aetherium://chat",
		userAgent: fmt.Sprintf("aetherium-cli (%s/%s)", runtime.GOOS, runtime.GOARCH),
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionID identifies this process's log session.
func (s *Store) SessionID() string { return s.sessionID }

// SetLevel changes the threshold below which records are skipped.
func (s *Store) SetLevel(l Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = l
}

// Level returns the current threshold.
func (s *Store) Level() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// SetURL records the location stamped on later entries, normally the
// active view.
func (s *Store) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

// Record appends an entry if level passes the threshold. It reports
// whether the entry was kept.
func (s *Store) Record(level Level, message string, data map[string]any) (Entry, bool) {
	if data == nil {
		data = map[string]any{}
	}

	s.mu.Lock()
	if level < s.level {
		s.mu.Unlock()
		return Entry{}, false
	}
	entry := Entry{
		Timestamp: s.now().UTC(),
		Level:     level,
		Message:   message,
		Data:      data,
		UserAgent: s.userAgent,
		URL:       s.url,
		SessionID: s.sessionID,
	}
	if len(s.entries) >= s.max {
		drop := len(s.entries) - s.max + 1
		s.entries = append(s.entries[:0], s.entries[drop:]...)
	}
	s.entries = append(s.entries, entry)
	upload := s.uploader != nil && !s.closed && level >= LevelWarn
	if upload {
		s.uploads.Add(1)
	}
	s.mu.Unlock()

	internal.LogDebug("[%s] %s: %s", entry.Timestamp.Format(time.RFC3339), level, message)
	if upload {
		go s.upload(entry)
	}
	return entry, true
}

func (s *Store) upload(entry Entry) {
	defer s.uploads.Done()
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	if err := s.uploader.SubmitLog(ctx, entry); err != nil {
		internal.LogDebug("Failed to send log to backend: %v", err)
	}
}

// Debug records at DEBUG.
func (s *Store) Debug(message string, data map[string]any) { s.Record(LevelDebug, message, data) }

// Info records at INFO.
func (s *Store) Info(message string, data map[string]any) { s.Record(LevelInfo, message, data) }

// Warn records at WARN.
func (s *Store) Warn(message string, data map[string]any) { s.Record(LevelWarn, message, data) }

// Error records at ERROR.
func (s *Store) Error(message string, data map[string]any) { s.Record(LevelError, message, data) }

// LogAPICall records a finished REST call. Status 0 means the request
// never got a response.
func (s *Store) LogAPICall(method, url string, status int, duration time.Duration, data map[string]any) {
	level := LevelInfo
	statusText := fmt.Sprint(status)
	switch {
	case status == 0:
		level = LevelError
		statusText = "NETWORK_ERROR"
	case status >= 400:
		level = LevelError
	case status >= 300:
		level = LevelWarn
	}
	merged := map[string]any{
		"method":   method,
		"url":      url,
		"status":   status,
		"duration": duration.Milliseconds(),
	}
	for k, v := range data {
		merged[k] = v
	}
	s.Record(level, fmt.Sprintf("API %s %s - %s (%dms)", method, url, statusText, duration.Milliseconds()), merged)
}

// LogUserAction records something the user did.
func (s *Store) LogUserAction(action string, data map[string]any) {
	s.Info("User Action: "+action, withField(data, "action", action))
}

// LogWebSocketMessage records a realtime channel event at DEBUG.
func (s *Store) LogWebSocketMessage(event string, data map[string]any) {
	s.Debug("WebSocket: "+event, data)
}

// LogNavigation records a view change.
func (s *Store) LogNavigation(from, to string, data map[string]any) {
	data = withField(data, "from", from)
	data["to"] = to
	s.Info(fmt.Sprintf("Navigation: %s -> %s", from, to), data)
}

// LogError records err at ERROR with extra context.
func (s *Store) LogError(err error, extra map[string]any) {
	if err == nil {
		return
	}
	data := withField(extra, "error", map[string]any{
		"name":    fmt.Sprintf("%T", err),
		"message": err.Error(),
	})
	s.Error("Error: "+err.Error(), data)
}

func withField(data map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(data)+1)
	out[key] = value
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Recent returns up to limit of the newest entries, oldest first.
func (s *Store) Recent(limit int) []Entry {
	if limit <= 0 {
		limit = DefaultRecent
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.entries) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Entry, len(s.entries)-start)
	copy(out, s.entries[start:])
	return out
}

// Query returns every entry at or above threshold in arrival order.
func (s *Store) Query(threshold Level) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Level >= threshold {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Export writes the buffer to w as an indented JSON array.
func (s *Store) Export(w io.Writer) error {
	s.mu.Lock()
	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return &internal.ExportError{Format: "json", Path: "logs", Err: err}
	}
	return nil
}

// Restore puts entries from an earlier process ahead of the current ones,
// keeping the newest within capacity.
func (s *Store) Restore(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make([]Entry, 0, len(entries)+len(s.entries))
	merged = append(merged, entries...)
	merged = append(merged, s.entries...)
	if len(merged) > s.max {
		merged = merged[len(merged)-s.max:]
	}
	s.entries = merged
}

// Clear empties the buffer.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Close stops new uploads and waits for in-flight ones.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.uploads.Wait()
}
