package assignment

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Session is one conversation's interaction state. Its pending item is only
// touched through the Engine; the mutex is never held across store calls.
type Session struct {
	ChatID int64

	mu      sync.Mutex
	pending int64
	hasTask bool
}

func NewSession(chatID int64) *Session {
	return &Session{ChatID: chatID}
}

// PendingItemID returns the item currently offered to this session.
func (s *Session) PendingItemID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.hasTask
}

func (s *Session) setPending(id int64) {
	s.mu.Lock()
	s.pending, s.hasTask = id, true
	s.mu.Unlock()
}

// clearIf drops the pending item only if it is still id, so a newer offer is not lost.
func (s *Session) clearIf(id int64) {
	s.mu.Lock()
	if s.hasTask && s.pending == id {
		s.pending, s.hasTask = 0, false
	}
	s.mu.Unlock()
}

// Sessions keeps the most recently active sessions keyed by chat id.
// Evicted or restarted sessions simply start over with /start.
type Sessions struct {
	cache *lru.Cache[int64, *Session]
}

func NewSessions(size int) (*Sessions, error) {
	cache, err := lru.New[int64, *Session](size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Sessions{cache: cache}, nil
}

// Get returns the session for chatID, creating it on first use.
func (s *Sessions) Get(chatID int64) *Session {
	if session, ok := s.cache.Get(chatID); ok {
		return session
	}
	fresh := NewSession(chatID)
	if prev, ok, _ := s.cache.PeekOrAdd(chatID, fresh); ok {
		return prev
	}
	return fresh
}

func (s *Sessions) Len() int {
	return s.cache.Len()
}
