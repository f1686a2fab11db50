// Package registry maps the closed set of support domains to agent
// descriptors. Registration happens once at startup; lookups are O(1) and
// lock-free afterwards.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carelink-project/carelink-multi-agent/config"
)

// Domain is one specialized capability area. The set is closed: anything
// outside it is handled through the explicit unregistered path, never a
// map miss at call time.
type Domain string

const (
	DomainNutrition  Domain = "nutrition"
	DomainWelfare    Domain = "welfare"
	DomainLiterature Domain = "literature"
	DomainQuiz       Domain = "quiz"
	DomainTrend      Domain = "trend"
)

// All lists every known domain in registration order.
func All() []Domain {
	return []Domain{DomainNutrition, DomainWelfare, DomainLiterature, DomainQuiz, DomainTrend}
}

// ErrUnknownDomain is the canonical unregistered-identifier error.
var ErrUnknownDomain = errors.New("unknown agent domain")

// ParseDomain normalizes an identifier to a known domain. Aliases used by
// the classifier model and callers collapse onto the canonical ids.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nutrition", "diet", "food", "식단", "영양":
		return DomainNutrition, nil
	case "welfare", "benefit", "복지":
		return DomainWelfare, nil
	case "literature", "paper", "research", "논문":
		return DomainLiterature, nil
	case "quiz", "퀴즈":
		return DomainQuiz, nil
	case "trend", "trend_visualization", "trends", "트렌드":
		return DomainTrend, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
	}
}

// ExecutionMode selects how a domain handler runs.
type ExecutionMode string

const (
	ModeLocal  ExecutionMode = "local"
	ModeRemote ExecutionMode = "remote"
)

// AgentDescriptor is the immutable registration record for one domain.
type AgentDescriptor struct {
	Domain   Domain
	Name     string
	Mode     ExecutionMode
	Endpoint string
	Meta     config.AgentCapabilities
}

// Registry resolves domains to descriptors. Read-only after Build.
type Registry struct {
	table map[Domain]*AgentDescriptor
}

// Build constructs the registry from the validated agent table. Entries
// whose key does not parse to a known domain are rejected at startup
// rather than at call time.
func Build(cfg *config.Config) (*Registry, error) {
	table := make(map[Domain]*AgentDescriptor, len(cfg.Agents))
	for key, agent := range cfg.Agents {
		domain, err := ParseDomain(key)
		if err != nil {
			return nil, err
		}
		mode := ModeLocal
		if strings.EqualFold(agent.Mode, string(ModeRemote)) {
			mode = ModeRemote
		}
		if mode == ModeRemote && agent.Endpoint == "" {
			return nil, fmt.Errorf("agent %q: remote mode requires endpoint", key)
		}
		table[domain] = &AgentDescriptor{
			Domain:   domain,
			Name:     agent.Name,
			Mode:     mode,
			Endpoint: agent.Endpoint,
			Meta:     agent.Capabilities,
		}
	}
	return &Registry{table: table}, nil
}

// Resolve returns the descriptor for a domain, or ErrUnknownDomain.
func (r *Registry) Resolve(domain Domain) (*AgentDescriptor, error) {
	if d, ok := r.table[domain]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
}

// Registered lists the registered domains.
func (r *Registry) Registered() []Domain {
	out := make([]Domain, 0, len(r.table))
	for _, d := range All() {
		if _, ok := r.table[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
