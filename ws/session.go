package ws

import (
	"encoding/json"
	"sync"
	"time"

	"task-server/entities"

	"github.com/gorilla/websocket"
)

// Session events, shared by both directions of the channel.
const (
	EventList    = "tasks:list"
	EventCreate  = "tasks:create"
	EventCreated = "tasks:created"
	EventToggle  = "tasks:toggle"
	EventToggled = "tasks:toggled"
	EventDelete  = "tasks:delete"
	EventDeleted = "tasks:deleted"
	EventError   = "error"
)

const (
	sendBuffer   = 32
	closeTimeout = time.Second
)

// writeWait bounds each frame write; a client that stops reading is dropped.
var writeWait = 10 * time.Second

// Envelope is one frame on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an outbound frame.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Session is one open persistent channel. The Principal is fixed at handshake
// and never re-validated for the life of the connection.
type Session struct {
	Principal entities.Principal

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewSession(p entities.Principal, conn *websocket.Conn) *Session {
	return &Session{
		Principal: p,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
}

func (s *Session) UserID() string { return s.Principal.UserID }

// Send queues payload for the writer. It reports false once the session is closed.
func (s *Session) Send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	case <-s.done:
		return false
	}
}

// Emit encodes and queues one event.
func (s *Session) Emit(event string, data interface{}) bool {
	b, err := Encode(event, data)
	if err != nil {
		return false
	}
	return s.Send(b)
}

// WritePump is the only goroutine that writes data frames to the connection.
func (s *Session) WritePump() {
	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		case <-s.done:
			return
		}
	}
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close sends a close frame when possible and tears down the connection.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		if code != websocket.CloseAbnormalClosure {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(closeTimeout))
		}
		_ = s.conn.Close()
	})
}
