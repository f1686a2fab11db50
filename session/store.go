package session

import (
	"sync"

	"github.com/carelink-project/carelink-multi-agent/types"
)

// MemoryStore keeps sessions in process memory. Access is keyed by
// session id so contention stays partitioned per session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	byUser   map[string]string // userID -> sessionID
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*types.Session),
		byUser:   make(map[string]string),
	}
}

// Get returns a copy of the stored session.
func (s *MemoryStore) Get(id string) (*types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

// Put inserts or replaces a session.
func (s *MemoryStore) Put(sess *types.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[cp.ID] = &cp
	s.byUser[cp.UserID] = cp.ID
}

// Delete removes a session.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		if s.byUser[sess.UserID] == id {
			delete(s.byUser, sess.UserID)
		}
		delete(s.sessions, id)
	}
}

// FindByUser returns the user's current session, if any.
func (s *MemoryStore) FindByUser(userID string) (*types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUser[userID]
	if !ok {
		return nil, false
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

func (s *MemoryStore) snapshot() []*types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out
}
