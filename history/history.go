// Package history is the durable collaborator for conversation turns and
// per-user context. Turns are append-only; the core only reads a bounded
// recent window. User context is a single upserted row per user.
package history

import (
	"context"
	"sort"
	"sync"

	"github.com/carelink-project/carelink-multi-agent/types"
)

// Store is the persistence contract consumed by the orchestrator and the
// context engineer.
type Store interface {
	// RecentTurns returns up to limit turns for the user, oldest to newest.
	RecentTurns(ctx context.Context, userID string, limit int) ([]types.ConversationTurn, error)
	// SaveTurn appends one turn.
	SaveTurn(ctx context.Context, turn *types.ConversationTurn) error
	// UserContext returns the stored context, or nil when none exists.
	UserContext(ctx context.Context, userID string) (*types.UserContext, error)
	// SaveUserContext inserts or replaces the user's context.
	SaveUserContext(ctx context.Context, uc *types.UserContext) error
}

// MemoryStore is the in-process Store used by tests and single-node runs.
type MemoryStore struct {
	mu       sync.RWMutex
	turns    map[string][]types.ConversationTurn
	contexts map[string]*types.UserContext
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns:    make(map[string][]types.ConversationTurn),
		contexts: make(map[string]*types.UserContext),
	}
}

// RecentTurns returns the user's most recent turns, oldest to newest.
func (s *MemoryStore) RecentTurns(_ context.Context, userID string, limit int) ([]types.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[userID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]types.ConversationTurn, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SaveTurn appends one turn.
func (s *MemoryStore) SaveTurn(_ context.Context, turn *types.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.UserID] = append(s.turns[turn.UserID], *turn)
	return nil
}

// UserContext returns the stored context or nil.
func (s *MemoryStore) UserContext(_ context.Context, userID string) (*types.UserContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uc, ok := s.contexts[userID]
	if !ok {
		return nil, nil
	}
	cp := *uc
	cp.Keywords = append([]string(nil), uc.Keywords...)
	return &cp, nil
}

// SaveUserContext upserts the user's context (last writer wins).
func (s *MemoryStore) SaveUserContext(_ context.Context, uc *types.UserContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *uc
	cp.Keywords = append([]string(nil), uc.Keywords...)
	s.contexts[cp.UserID] = &cp
	return nil
}
