package storage

import (
	"sort"
	"sync"

	"github.com/talkmate-aac/talkmate/internal/session"
)

// SessionStore is the in-memory registry of live board sessions. With a
// positive limit, adding a session beyond it evicts the oldest one.
type SessionStore struct {
	sessions map[string]*session.Controller
	limit    int
	mu       sync.RWMutex
}

func New() *SessionStore {
	return NewWithLimit(0)
}

// NewWithLimit returns a store holding at most limit sessions; 0 is unbounded
func NewWithLimit(limit int) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session.Controller),
		limit:    limit,
	}
}

func (s *SessionStore) Get(sessionID string) (*session.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	controller, exists := s.sessions[sessionID]
	return controller, exists
}

// Set stores controller and returns the ids of sessions evicted to stay
// within the limit
func (s *SessionStore) Set(sessionID string, controller *session.Controller) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = controller

	var evicted []string
	for s.limit > 0 && len(s.sessions) > s.limit {
		oldest := s.oldestLocked(sessionID)
		if oldest == "" {
			break
		}
		delete(s.sessions, oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

// oldestLocked finds the oldest session other than keep
func (s *SessionStore) oldestLocked(keep string) string {
	var oldest *session.Controller
	for id, c := range s.sessions {
		if id == keep {
			continue
		}
		if oldest == nil || before(c, oldest) {
			oldest = c
		}
	}
	if oldest == nil {
		return ""
	}
	return oldest.ID()
}

func before(a, b *session.Controller) bool {
	if a.CreatedAt().Equal(b.CreatedAt()) {
		return a.ID() < b.ID()
	}
	return a.CreatedAt().Before(b.CreatedAt())
}

// GetAll returns every session, oldest first
func (s *SessionStore) GetAll() []*session.Controller {
	s.mu.RLock()
	result := make([]*session.Controller, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return before(result[i], result[j])
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
