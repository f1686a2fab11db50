// Package llm - schema-validated JSON output handling.
//
// Models frequently wrap JSON in markdown fences or drift from the asked-for
// shape. All callers that need structured output go through a Decoder:
// one normalization step (fence stripping), then schema validation, then
// decode-or-fail. ChatJSON adds bounded retry with backoff on malformed
// output.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/carelink-project/carelink-multi-agent/resilience"
)

// ErrMalformedOutput marks model output that failed normalization,
// validation or decoding.
var ErrMalformedOutput = errors.New("llm: malformed model output")

// StripFences removes a single surrounding markdown code fence, with or
// without a language tag. Inner content is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line (e.g. "json").
		if tag := strings.TrimSpace(s[:i]); len(tag) <= 12 && !strings.ContainsAny(tag, "{}[]") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Decoder validates raw model output against a compiled JSON schema
// before decoding it into a Go value.
type Decoder struct {
	schema *gojsonschema.Schema
}

// NewDecoder compiles the given JSON schema.
func NewDecoder(schemaJSON string) (*Decoder, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader([]byte(schemaJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Decoder{schema: schema}, nil
}

// Decode normalizes raw output, validates it against the schema and
// unmarshals into v. Any failure is reported as ErrMalformedOutput.
func (d *Decoder) Decode(raw string, v any) error {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	result, err := d.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrMalformedOutput, strings.Join(errs, "; "))
	}

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// ChatJSON sends the exchange and decodes the validated response into v,
// retrying malformed output up to attempts times with jittered backoff.
func ChatJSON(ctx context.Context, c Client, d *Decoder, system, user string, v any, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	cfg := &resilience.RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    200 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.1,
		RetryIf: func(err error) bool {
			return errors.Is(err, ErrMalformedOutput)
		},
	}
	return resilience.RetryWithConfig(ctx, cfg, func() error {
		out, err := c.Chat(ctx, system, user)
		if err != nil {
			return err
		}
		return d.Decode(out, v)
	})
}
