package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSServer is a websocket endpoint for tests. It records every frame it
// receives and can push frames to, or drop, the connected clients.
type WSServer struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]byte
	accepted int
	connCh   chan struct{}
}

// NewWSServer starts a websocket server serving every path
func NewWSServer(t *testing.T) *WSServer {
	t.Helper()
	s := &WSServer{connCh: make(chan struct{}, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *WSServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.accepted++
	s.mu.Unlock()
	select {
	case s.connCh <- struct{}{}:
	default:
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, data)
		s.mu.Unlock()
	}
}

// URL returns the ws:// address of the server's /ws path
func (s *WSServer) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/ws"
}

// WaitForConnection blocks until a client connects or the timeout expires
func (s *WSServer) WaitForConnection(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-s.connCh:
	case <-time.After(timeout):
		t.Fatalf("no websocket connection within %v", timeout)
	}
}

// Accepted returns how many connections have been upgraded so far
func (s *WSServer) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Broadcast writes a text frame to every open connection
func (s *WSServer) Broadcast(t *testing.T, data []byte) {
	t.Helper()
	if err := s.Push(data); err != nil {
		t.Logf("broadcast: %v", err)
	}
}

// Push writes a text frame to every open connection and returns the last
// write error. It is safe to call from handler goroutines.
func (s *WSServer) Push(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last error
	for _, conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			last = err
		}
	}
	return last
}

// DropAll closes every open connection without a close handshake
func (s *WSServer) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

// Received returns a copy of the frames read from clients
func (s *WSServer) Received() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.received))
	copy(out, s.received)
	return out
}

// Close drops clients and shuts the server down
func (s *WSServer) Close() {
	s.DropAll()
	s.Server.Close()
}
