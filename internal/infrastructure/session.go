package infrastructure

import (
	"sync"
	"time"
)

// ConversationSession tracks the outstanding AI request of one conversation.
type ConversationSession struct {
	Key          string
	IsProcessing bool
	StartedAt    time.Time
}

// SessionManager keeps at most one request in flight per conversation.
type SessionManager struct {
	sessions map[string]*ConversationSession
	mu       sync.Mutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*ConversationSession),
	}
}

// StartProcessing marks the conversation busy. It returns false if a request is
// already running for it.
func (sm *SessionManager) StartProcessing(key string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[key]
	if !exists {
		session = &ConversationSession{Key: key}
		sm.sessions[key] = session
	}
	if session.IsProcessing {
		return false
	}
	session.IsProcessing = true
	session.StartedAt = time.Now()
	return true
}

// FinishProcessing releases the conversation. Idle sessions are dropped so the map
// does not grow with every conversation ever seen.
func (sm *SessionManager) FinishProcessing(key string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, key)
}

// Active returns how many conversations have a request in flight.
func (sm *SessionManager) Active() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}
