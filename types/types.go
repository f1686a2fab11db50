// Package types defines the data model shared by the classifier,
// orchestrator, session manager and context engineer.
package types

import (
	"time"
)

// Profile identifies the caller profile used to bound handler output.
type Profile string

const (
	ProfileGeneral    Profile = "general"
	ProfilePatient    Profile = "patient"
	ProfileResearcher Profile = "researcher"
)

// Query is a single inbound user query. Immutable once received.
type Query struct {
	Text      string  `json:"text"`
	SessionID string  `json:"session_id"`
	UserID    string  `json:"user_id"`
	Profile   Profile `json:"profile,omitempty"`
	Lang      string  `json:"lang,omitempty"`
	// Hint forces routing to one domain, bypassing classification.
	// Must already be validated against the known domain set.
	Hint    string            `json:"hint,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// Candidate is one (domain, confidence) pair produced by the classifier.
type Candidate struct {
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
}

// ClassificationResult is the ranked candidate set for one query.
// Candidates are ordered by descending confidence. Not persisted.
type ClassificationResult struct {
	Candidates []Candidate `json:"candidates"`
	Emergency  bool        `json:"emergency"`
	// Defaulted is true when no domain cleared the threshold and the
	// configured default domain was substituted.
	Defaulted bool `json:"defaulted,omitempty"`
}

// Top returns the highest-confidence candidates. All candidates whose
// confidence exactly equals the maximum are returned, so ties dispatch
// as a multi-domain case.
func (c *ClassificationResult) Top() []Candidate {
	if len(c.Candidates) == 0 {
		return nil
	}
	max := c.Candidates[0].Confidence
	for _, cand := range c.Candidates[1:] {
		if cand.Confidence > max {
			max = cand.Confidence
		}
	}
	var top []Candidate
	for _, cand := range c.Candidates {
		if cand.Confidence == max {
			top = append(top, cand)
		}
	}
	return top
}

// DispatchResult is the outcome of one domain handler invocation.
// One instance per dispatched domain per request; never persisted.
type DispatchResult struct {
	Domain     string            `json:"domain"`
	Answer     string            `json:"answer,omitempty"`
	Sources    []Source          `json:"sources,omitempty"`
	TokensUsed int               `json:"tokens_used,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	Success    bool              `json:"success"`
	Err        string            `json:"error,omitempty"`
}

// Source is a domain-specific citation, opaque to the core.
type Source struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
	Note  string `json:"note,omitempty"`
}

// SynthesizedResponse is the final answer for one query.
// Synthesis is true iff more than one domain was dispatched successfully.
type SynthesizedResponse struct {
	Answer     string                     `json:"answer"`
	Synthesis  bool                       `json:"synthesis"`
	Primary    string                     `json:"primary_domain"`
	RoutedTo   []string                   `json:"routed_to"`
	Results    map[string]*DispatchResult `json:"results,omitempty"`
	Emergency  bool                       `json:"emergency,omitempty"`
	Disclaimer string                     `json:"disclaimer,omitempty"`
	// ContextState reports whether the user's durable context is fresh,
	// stale or currently refreshing.
	ContextState string `json:"context_state,omitempty"`
}

// Session is the bounded-lifetime conversational context for a user+room.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	LastDomain   string    `json:"last_domain,omitempty"`
	TurnCount    int       `json:"turn_count"`
	TokenEstim   int       `json:"token_estimate"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session must no longer be mutated.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ConversationTurn is one append-only history record. The core only ever
// reads a bounded recent window and never mutates past turns.
type ConversationTurn struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Domain    string    `json:"domain"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"created_at"`
}

// UserContext is the durable per-user profile distilled from recent turns.
// At most one live instance per user; upserted by the context engineer.
type UserContext struct {
	UserID    string    `json:"user_id"`
	Summary   string    `json:"summary"`
	Keywords  []string  `json:"keywords"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the context carries no distilled information yet.
func (u *UserContext) Empty() bool {
	return u == nil || (u.Summary == "" && len(u.Keywords) == 0)
}
