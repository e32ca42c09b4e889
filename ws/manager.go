package ws

import (
	"sync"

	"task-server/entities"

	"github.com/gorilla/websocket"
)

// Broadcaster tracks at most one open session per user.
//
// Only mutations made on a session are re-pushed to it. Mutations arriving
// through the request/response or graph surfaces do not reach an already
// open session; a client sees them on its next list or reconnect.
type Broadcaster struct {
	mu       sync.RWMutex
	sessions map[string]*Session // userID -> session
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{sessions: make(map[string]*Session)}
}

// Register tracks s for its user, closing and replacing any existing session.
func (b *Broadcaster) Register(s *Session) {
	b.mu.Lock()
	old, ok := b.sessions[s.UserID()]
	b.sessions[s.UserID()] = s
	b.mu.Unlock()

	if ok && old != s {
		old.Close(websocket.ClosePolicyViolation, "superseded by a newer session")
	}
}

// Unregister closes s and stops tracking it if it is still the current session.
func (b *Broadcaster) Unregister(s *Session) {
	b.mu.Lock()
	if cur, ok := b.sessions[s.UserID()]; ok && cur == s {
		delete(b.sessions, s.UserID())
	}
	b.mu.Unlock()

	s.Close(websocket.CloseNormalClosure, "")
}

// Republish pushes the full task list to s, provided s is still the tracked
// session for its user.
func (b *Broadcaster) Republish(s *Session, tasks []entities.Task) bool {
	b.mu.RLock()
	cur, ok := b.sessions[s.UserID()]
	b.mu.RUnlock()
	if !ok || cur != s {
		return false
	}
	return s.Emit(EventList, tasks)
}

// Current returns the tracked session for userID.
func (b *Broadcaster) Current(userID string) (*Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[userID]
	return s, ok
}

// IsConnected returns whether a user currently has an open session.
func (b *Broadcaster) IsConnected(userID string) bool {
	_, ok := b.Current(userID)
	return ok
}

// Connected returns a copy of the user IDs with an open session.
func (b *Broadcaster) Connected() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	return ids
}
