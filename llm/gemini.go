// Package llm - Gemini client backed by langchaingo.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// GoogleClient implements Client on top of the langchaingo googleai model.
type GoogleClient struct {
	model *googleai.GoogleAI
}

// NewGoogleClient initializes the Gemini model.
func NewGoogleClient(ctx context.Context, apiKey, model string) (*GoogleClient, error) {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	m, err := googleai.New(
		ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini model: %w", err)
	}
	return &GoogleClient{model: m}, nil
}

// Chat sends a system+user exchange and returns the first choice's text.
func (c *GoogleClient) Chat(ctx context.Context, system, user string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	resp, err := c.model.GenerateContent(ctx, content)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
