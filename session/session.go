// Package session owns per-session conversation state: creation, lookup,
// turn accounting and expiry. Expiration is evaluated lazily on access;
// Sweep exists only for memory hygiene.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carelink-project/carelink-multi-agent/logger"
	"github.com/carelink-project/carelink-multi-agent/types"
)

var (
	// ErrNotFound is returned for a session id that was never created
	// (or already swept).
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned for a session whose TTL has elapsed.
	// Distinct from ErrNotFound: the id existed.
	ErrExpired = errors.New("session expired")

	// ErrContextLimitExceeded signals that the turn or token budget is
	// spent. The session's prior turns stay intact.
	ErrContextLimitExceeded = errors.New("session context limit exceeded")
)

// Store is the session persistence collaborator.
type Store interface {
	Get(id string) (*types.Session, bool)
	Put(s *types.Session)
	Delete(id string)
	FindByUser(userID string) (*types.Session, bool)
}

// Limits bounds how much conversation a session may accumulate.
type Limits struct {
	TTL       time.Duration
	MaxTurns  int
	MaxTokens int
}

// Manager coordinates session lifecycle. Per-session appends are
// serialized; concurrent requests against the same id are otherwise the
// caller's responsibility (last append wins).
type Manager struct {
	store  Store
	limits Limits
	log    *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, limits Limits, log *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		limits: limits,
		log:    log.WithComponent("session"),
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

// CreateOrGet returns the user's live session, replacing an expired one.
func (m *Manager) CreateOrGet(userID string) *types.Session {
	if s, ok := m.store.FindByUser(userID); ok {
		if !s.Expired(m.now()) {
			return s
		}
		m.store.Delete(s.ID)
	}

	now := m.now()
	s := &types.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.limits.TTL),
	}
	m.store.Put(s)
	m.log.Infof("created session %s for user %s", s.ID, userID)
	return s
}

// Get returns a live session. Expired sessions yield ErrExpired, unknown
// ids ErrNotFound; an expired session is never silently recreated.
func (m *Manager) Get(id string) (*types.Session, error) {
	s, ok := m.store.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if s.Expired(m.now()) {
		return nil, ErrExpired
	}
	return s, nil
}

// AppendTurn records one completed turn against the session, updating the
// counters and last-used domain. Crossing the configured turn or token
// budget fails with ErrContextLimitExceeded and leaves the session as-is.
func (m *Manager) AppendTurn(id string, turn *types.ConversationTurn) error {
	lock := m.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.Get(id)
	if err != nil {
		return err
	}

	tokens := estimateTokens(turn.Input) + estimateTokens(turn.Output)
	if m.limits.MaxTurns > 0 && s.TurnCount+1 > m.limits.MaxTurns {
		return ErrContextLimitExceeded
	}
	if m.limits.MaxTokens > 0 && s.TokenEstim+tokens > m.limits.MaxTokens {
		return ErrContextLimitExceeded
	}

	s.TurnCount++
	s.TokenEstim += tokens
	s.LastDomain = turn.Domain
	s.LastActivity = m.now()
	m.store.Put(s)
	return nil
}

// Reset clears accumulated context. domain "all" (or "") zeroes the
// counters; a specific domain only clears the continuity marker when it
// matches the last-used domain.
func (m *Manager) Reset(id string, domain string) error {
	lock := m.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if domain == "" || domain == "all" {
		s.TurnCount = 0
		s.TokenEstim = 0
		s.LastDomain = ""
	} else if s.LastDomain == domain {
		s.LastDomain = ""
	}
	m.store.Put(s)
	return nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	removed := 0
	if ms, ok := m.store.(*MemoryStore); ok {
		for _, s := range ms.snapshot() {
			if s.Expired(m.now()) {
				m.store.Delete(s.ID)
				removed++
			}
		}
	}
	if removed > 0 {
		m.log.Infof("swept %d expired sessions", removed)
	}
	return removed
}

func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[id] = l
	return l
}

func estimateTokens(s string) int {
	return (len([]rune(s)) + 3) / 4
}
