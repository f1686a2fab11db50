// Package llm provides a small, pluggable chat-model client used by the
// classifier, the synthesis step, the context engineer and the local agents.
package llm

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
	"unicode"
)

// ErrLLMDisabled is returned when no usable provider credentials are set.
var ErrLLMDisabled = errors.New("llm client disabled (missing key)")

// Client is the minimal chat contract every caller depends on.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// NewFromEnv creates a client based on LLM_PROVIDER.
// Providers: "gemini" (default, via langchaingo) and "openai"
// (any OpenAI-compatible endpoint).
// Key precedence: LLM_API_KEY > GEMINI_API_KEY > GOOGLE_API_KEY > OPENAI_API_KEY.
func NewFromEnv(ctx context.Context) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = "gemini"
	}

	key := firstNonEmpty(
		os.Getenv("LLM_API_KEY"),
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("GOOGLE_API_KEY"),
		os.Getenv("OPENAI_API_KEY"),
	)
	model := strings.TrimSpace(os.Getenv("LLM_MODEL"))

	timeout := 15 * time.Second
	if v := strings.TrimSpace(os.Getenv("LLM_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}

	base := strings.TrimSpace(os.Getenv("LLM_BASE_URL"))
	allowNoKey := strings.EqualFold(os.Getenv("LLM_ALLOW_NO_KEY"), "true") ||
		strings.Contains(base, "localhost") || strings.Contains(base, "127.0.0.1")
	if key == "" && !allowNoKey {
		return nil, ErrLLMDisabled
	}

	switch provider {
	case "openai":
		return NewOpenAIClient(base, key, model, timeout), nil
	default:
		return NewGoogleClient(ctx, key, model)
	}
}

// DetectLang returns "ko" if Hangul is detected, otherwise "en".
func DetectLang(s string) string {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return "ko"
		}
	}
	return "en"
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
