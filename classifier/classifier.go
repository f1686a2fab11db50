// Package classifier turns a free-text query into a ranked set of candidate
// domains with confidence scores and an emergency flag.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/carelink-project/carelink-multi-agent/llm"
	"github.com/carelink-project/carelink-multi-agent/logger"
	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/types"
)

const classifySystem = `You are an intent classifier for a chronic-disease patient support assistant.
Given a user query, score how strongly it belongs to each of these domains:
- nutrition: diet, meals, food restrictions for the condition
- welfare: benefits, subsidies, support programs, care services
- literature: medical papers, studies, research findings
- quiz: educational quizzes and self-tests about the condition
- trend: research or treatment trends over time, statistics

A query may belong to several domains at once.
Return ONLY a JSON object:
{"candidates":[{"domain":"<id>","confidence":<0..1>}, ...]}
Include only domains with meaningful relevance. No prose, no markdown fences.`

const classifySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["candidates"],
  "properties": {
    "candidates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["domain", "confidence"],
        "properties": {
          "domain": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

// Classifier scores queries against the closed domain set. It holds no
// state and never writes session or user data.
type Classifier struct {
	llm           llm.Client
	decoder       *llm.Decoder
	minConfidence float64
	defaultDomain registry.Domain
	log           *logger.Logger
}

// New builds a classifier. defaultDomain receives queries that clear no
// threshold; it must itself be a known domain.
func New(client llm.Client, minConfidence float64, defaultDomain string, log *logger.Logger) (*Classifier, error) {
	dom, err := registry.ParseDomain(defaultDomain)
	if err != nil {
		return nil, fmt.Errorf("default domain: %w", err)
	}
	decoder, err := llm.NewDecoder(classifySchema)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		llm:           client,
		decoder:       decoder,
		minConfidence: minConfidence,
		defaultDomain: dom,
		log:           log.WithComponent("classifier"),
	}, nil
}

// Classify ranks candidate domains for one query. Prior user context, when
// present, is included as a routing hint only.
func (c *Classifier) Classify(ctx context.Context, text string, prior *types.UserContext) (*types.ClassificationResult, error) {
	emergency := IsEmergency(text)

	user := map[string]any{"query": text}
	if prior != nil && !prior.Empty() {
		user["user_summary"] = prior.Summary
		user["user_keywords"] = prior.Keywords
	}
	payload, _ := json.Marshal(user)

	var raw struct {
		Candidates []struct {
			Domain     string  `json:"domain"`
			Confidence float64 `json:"confidence"`
		} `json:"candidates"`
	}
	if err := llm.ChatJSON(ctx, c.llm, c.decoder, classifySystem, string(payload), &raw, 2); err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	// Normalize, threshold, dedupe (keep the highest score per domain).
	best := make(map[registry.Domain]float64)
	for _, cand := range raw.Candidates {
		dom, err := registry.ParseDomain(cand.Domain)
		if err != nil {
			c.log.Warnf("dropping unknown candidate domain %q", cand.Domain)
			continue
		}
		if cand.Confidence < c.minConfidence {
			continue
		}
		if cand.Confidence > best[dom] {
			best[dom] = cand.Confidence
		}
	}

	result := &types.ClassificationResult{Emergency: emergency}
	for dom, conf := range best {
		result.Candidates = append(result.Candidates, types.Candidate{
			Domain:     string(dom),
			Confidence: conf,
		})
	}
	sort.SliceStable(result.Candidates, func(i, j int) bool {
		if result.Candidates[i].Confidence != result.Candidates[j].Confidence {
			return result.Candidates[i].Confidence > result.Candidates[j].Confidence
		}
		return strings.Compare(result.Candidates[i].Domain, result.Candidates[j].Domain) < 0
	})

	// Nothing cleared the threshold: route to the default domain instead
	// of failing the request.
	if len(result.Candidates) == 0 {
		result.Candidates = []types.Candidate{{
			Domain:     string(c.defaultDomain),
			Confidence: c.minConfidence,
		}}
		result.Defaulted = true
		c.log.Infof("no candidate cleared %.2f, defaulting to %s", c.minConfidence, c.defaultDomain)
	}

	return result, nil
}
