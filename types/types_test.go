package types

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassificationResultTop(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		want       []string
	}{
		{"empty", nil, nil},
		{"single", []Candidate{{Domain: "quiz", Confidence: 0.8}}, []string{"quiz"}},
		{
			"clear winner",
			[]Candidate{{Domain: "nutrition", Confidence: 0.9}, {Domain: "trend", Confidence: 0.7}},
			[]string{"nutrition"},
		},
		{
			"tie keeps both",
			[]Candidate{{Domain: "nutrition", Confidence: 0.8}, {Domain: "trend", Confidence: 0.8}},
			[]string{"nutrition", "trend"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&ClassificationResult{Candidates: tt.candidates}).Top()
			if len(got) != len(tt.want) {
				t.Fatalf("Top() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Domain != tt.want[i] {
					t.Errorf("Top()[%d] = %s, want %s", i, got[i].Domain, tt.want[i])
				}
			}
		})
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Error("session expired before its deadline")
	}
	if !s.Expired(now.Add(2 * time.Minute)) {
		t.Error("session not expired after its deadline")
	}
}

func TestKindOf(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"typed", NewFailure(FailureInvalidSession, base), FailureInvalidSession},
		{"wrapped typed", fmt.Errorf("outer: %w", NewFailure(FailureContextLimit, base)), FailureContextLimit},
		{"untyped defaults", base, FailureResponseGeneration},
		{"nil defaults", nil, FailureResponseGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFailureUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewFailure(FailureClassification, cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is cannot reach the cause")
	}
}

func TestUserContextEmpty(t *testing.T) {
	var nilCtx *UserContext
	if !nilCtx.Empty() {
		t.Error("nil context not empty")
	}
	if !(&UserContext{UserID: "u"}).Empty() {
		t.Error("blank context not empty")
	}
	if (&UserContext{Summary: "s"}).Empty() {
		t.Error("context with summary reported empty")
	}
	if (&UserContext{Keywords: []string{"k"}}).Empty() {
		t.Error("context with keywords reported empty")
	}
}
