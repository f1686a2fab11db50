package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/types"
)

// Per-domain system prompts. Each agent answers only within its specialty
// and in the language of the question.
var systemPrompts = map[registry.Domain]string{
	registry.DomainNutrition: `You are a clinical nutrition assistant for chronic-disease patients.
Give practical, safe dietary guidance. Flag anything that needs a clinician.
Answer in the language of the question.`,
	registry.DomainWelfare: `You are a welfare-benefit guide for chronic-disease patients.
Explain relevant support programs, eligibility and how to apply.
Answer in the language of the question.`,
	registry.DomainLiterature: `You are a medical literature assistant.
Summarize relevant research plainly and cite titles where possible.
Answer in the language of the question.`,
	registry.DomainQuiz: `You are a health-education quiz master for chronic-disease patients.
Produce a short quiz with answers and one-line explanations.
Answer in the language of the question.`,
	registry.DomainTrend: `You are a research-trend analyst for chronic-disease topics.
Describe how interest and findings have shifted over recent years.
Answer in the language of the question.`,
}

// Chatter is the single-call LLM dependency of a local agent.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// LocalAgent is a prompt-specialized in-process handler backed by the
// shared chat model.
type LocalAgent struct {
	desc *registry.AgentDescriptor
	llm  Chatter
}

// NewLocalAgent builds the handler for one domain descriptor.
func NewLocalAgent(desc *registry.AgentDescriptor, llm Chatter) (*LocalAgent, error) {
	if _, ok := systemPrompts[desc.Domain]; !ok {
		return nil, fmt.Errorf("no local handler for domain %q", desc.Domain)
	}
	return &LocalAgent{desc: desc, llm: llm}, nil
}

// Handle answers one query within the agent's specialty.
func (a *LocalAgent) Handle(ctx context.Context, req *Request) (*Result, error) {
	system := systemPrompts[a.desc.Domain]
	if limit := a.maxResults(req.Profile); limit > 0 {
		system += fmt.Sprintf("\nLimit yourself to at most %d items or findings.", limit)
	}

	var sb strings.Builder
	if req.Context != nil && !req.Context.Empty() {
		sb.WriteString("Known about this user: ")
		sb.WriteString(req.Context.Summary)
		if len(req.Context.Keywords) > 0 {
			sb.WriteString(" (keywords: ")
			sb.WriteString(strings.Join(req.Context.Keywords, ", "))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString(req.Text)

	answer, err := a.llm.Chat(ctx, system, sb.String())
	if err != nil {
		return nil, fmt.Errorf("%s agent: %w", a.desc.Domain, err)
	}
	return &Result{
		Answer:     answer,
		TokensUsed: estimateTokens(sb.String()) + estimateTokens(answer),
		Meta: map[string]string{
			"agent":   a.desc.Name,
			"version": a.desc.Meta.Version,
		},
	}, nil
}

func (a *LocalAgent) maxResults(profile types.Profile) int {
	if a.desc.Meta.MaxResults == nil {
		return 0
	}
	if n, ok := a.desc.Meta.MaxResults[string(profile)]; ok {
		return n
	}
	return a.desc.Meta.MaxResults[string(types.ProfileGeneral)]
}

// estimateTokens approximates tokens as one per 4 runes.
func estimateTokens(s string) int {
	return (len([]rune(s)) + 3) / 4
}
