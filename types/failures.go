package types

import (
	"errors"
	"fmt"
)

// FailureKind classifies everything that can go wrong on the request path.
// The fallback policy maps each kind to a user-safe message and stable code.
type FailureKind string

const (
	FailureClassification     FailureKind = "CLASSIFICATION_FAILURE"
	FailureNonMedicalDomain   FailureKind = "NON_MEDICAL_DOMAIN"
	FailureContextLimit       FailureKind = "CONTEXT_LIMIT_EXCEEDED"
	FailureInvalidSession     FailureKind = "INVALID_SESSION"
	FailureUnknownAgentType   FailureKind = "UNKNOWN_AGENT_TYPE"
	FailureResponseGeneration FailureKind = "RESPONSE_GENERATION_FAILURE"
)

// Failure is the typed error surfaced by the orchestrator. The transport
// layer maps Kind to a status code and the fallback policy's message;
// Cause never reaches the end user.
type Failure struct {
	Kind  FailureKind
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Cause }

// NewFailure wraps cause with a failure kind.
func NewFailure(kind FailureKind, cause error) *Failure {
	return &Failure{Kind: kind, Cause: cause}
}

// KindOf extracts the failure kind from err. Unexpected internal errors
// default to FailureResponseGeneration so the mapping stays total.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureResponseGeneration
}

// ChatRequest is the inbound transport shape.
type ChatRequest struct {
	Message    string            `json:"message"`
	DomainHint string            `json:"domain_hint,omitempty"`
	SessionID  string            `json:"session_id"`
	UserID     string            `json:"user_id,omitempty"`
	Profile    Profile           `json:"profile,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// ChatResponse is the outbound transport shape.
type ChatResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	AgentType    string            `json:"agent_type,omitempty"`
	RoutedTo     []string          `json:"routed_to,omitempty"`
	Synthesis    bool              `json:"synthesis"`
	SessionID    string            `json:"session_id"`
	ContextInfo  map[string]string `json:"context_info,omitempty"`
	Error        string            `json:"error,omitempty"`
	FallbackType string            `json:"fallback_type,omitempty"`
}
