// Package agents defines the uniform handler contract the orchestrator
// dispatches through, plus the local (in-process) and remote (A2A)
// implementations.
package agents

import (
	"context"

	"github.com/carelink-project/carelink-multi-agent/types"
)

// Request carries one query into a domain handler.
type Request struct {
	Text    string
	Profile types.Profile
	Lang    string
	// Context is the caller's durable user context; may be empty but
	// never nil-dereferenced by handlers.
	Context *types.UserContext
	// Extra is opaque caller-supplied context, passed through untouched.
	Extra map[string]string
}

// Result is what a handler returns on success.
type Result struct {
	Answer     string
	Sources    []types.Source
	TokensUsed int
	Meta       map[string]string
}

// Handler is the uniform contract for every domain agent. The orchestrator
// treats local and remote handlers identically through it.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Result, error)
}
