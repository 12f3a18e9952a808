package signalling

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSessionClosed is returned when writing to a session that has already
// been closed locally.
var ErrSessionClosed = errors.New("session is closed")

const writeTimeout = 10 * time.Second

// Session is the write side of one live WebSocket connection. All methods
// are safe for concurrent use; writes are serialized internally because a
// gorilla connection permits only one concurrent writer.
type Session interface {
	// ID is the server-assigned connection id, used only for logging.
	ID() string
	// Send writes one text frame. Returns ErrSessionClosed after Close.
	Send(data []byte) error
	// Close sends a close frame with the given code and reason, then closes
	// the underlying connection. Idempotent.
	Close(code int, reason string) error
	// IsOpen reports whether the session has not been closed locally.
	IsOpen() bool
}

type wsSession struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewSession wraps an upgraded WebSocket connection.
func NewSession(id string, conn *websocket.Conn) Session {
	return &wsSession{id: id, conn: conn}
}

func (s *wsSession) ID() string { return s.id }

func (s *wsSession) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	return s.conn.Close()
}

func (s *wsSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}
