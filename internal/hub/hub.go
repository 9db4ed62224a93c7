// Package hub owns the registry of connected viewer sessions and fans record
// change events out to them. Delivery is best-effort: a session whose send
// buffer is full misses that event, and sessions that connect after an emit
// never see it. The broadcast stream is not a source of truth; viewers that
// need to converge re-fetch through the read endpoints.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civicworks/wastewatch/internal/events"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 32
)

// Hub is the connection manager for the realtime channel. Its lifetime is
// tied to the server process; there is no package-level instance.
type Hub struct {
	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[*session]struct{}),
		logger:   logger,
	}
}

// session is one connected viewer. Events are queued on send and drained by a
// single writer goroutine, so a session observes events in the order they
// were broadcast.
type session struct {
	conn *websocket.Conn
	send chan events.Event
}

// Broadcast implements events.Broadcaster. It queues e for every session
// connected right now and never blocks: a full session buffer drops the event
// for that session only.
func (h *Hub) Broadcast(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		select {
		case s.send <- e:
		default:
			h.logger.Warn("dropping event for slow viewer", "type", e.Type)
		}
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// ServeConn registers conn as a viewer session and blocks until the client
// disconnects. The caller keeps ownership of the HTTP request; conn is closed
// before ServeConn returns.
func (h *Hub) ServeConn(conn *websocket.Conn) {
	s := &session{conn: conn, send: make(chan events.Event, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	s.readLoop()

	h.unregister(s)
	wg.Wait()
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	// Safe: all sends on s.send happen under h.mu.
	close(s.send)
}

// Close disconnects every session. New connections are refused afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.sessions {
		delete(h.sessions, s)
		close(s.send)
	}
}

// writeLoop serializes queued events onto the connection and keeps it alive
// with pings. It exits when the send channel is closed or a write fails.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case e, ok := <-s.send:
			if !ok {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages (no client-to-server events are defined)
// and returns once the connection drops.
func (s *session) readLoop() {
	s.conn.SetReadLimit(1024)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
