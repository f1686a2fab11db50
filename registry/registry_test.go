package registry

import (
	"errors"
	"testing"

	"github.com/carelink-project/carelink-multi-agent/config"
)

func TestParseDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    Domain
		wantErr bool
	}{
		{"nutrition", DomainNutrition, false},
		{"diet", DomainNutrition, false},
		{"식단", DomainNutrition, false},
		{"Welfare", DomainWelfare, false},
		{"복지", DomainWelfare, false},
		{"paper", DomainLiterature, false},
		{"논문", DomainLiterature, false},
		{"quiz", DomainQuiz, false},
		{"퀴즈", DomainQuiz, false},
		{"trend_visualization", DomainTrend, false},
		{"트렌드", DomainTrend, false},
		{" TREND ", DomainTrend, false},
		{"astrology", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDomain(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownDomain) {
				t.Errorf("ParseDomain(%q) error = %v, want ErrUnknownDomain", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDomain(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func caps(typ string) config.AgentCapabilities {
	return config.AgentCapabilities{Type: typ, Skills: []string{"s"}, Version: "1.0.0"}
}

func TestBuildRejectsUnknownKey(t *testing.T) {
	_, err := Build(&config.Config{Agents: map[string]config.AgentConfig{
		"astrology": {Name: "x", Mode: "local", Capabilities: caps("nutrition")},
	}})
	if !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Build error = %v, want ErrUnknownDomain", err)
	}
}

func TestBuildRequiresEndpointForRemote(t *testing.T) {
	_, err := Build(&config.Config{Agents: map[string]config.AgentConfig{
		"trend": {Name: "trend-agent", Mode: "remote", Capabilities: caps("trend")},
	}})
	if err == nil {
		t.Fatal("Build accepted remote agent without endpoint")
	}
}

func TestResolveAndRegistered(t *testing.T) {
	reg, err := Build(&config.Config{Agents: map[string]config.AgentConfig{
		"nutrition": {Name: "nutrition-agent", Mode: "local", Capabilities: caps("nutrition")},
		"quiz":      {Name: "quiz-agent", Mode: "local", Capabilities: caps("quiz")},
	}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	desc, err := reg.Resolve(DomainQuiz)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if desc.Name != "quiz-agent" || desc.Mode != ModeLocal {
		t.Errorf("descriptor = %+v", desc)
	}

	if _, err := reg.Resolve(DomainTrend); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("Resolve unregistered error = %v, want ErrUnknownDomain", err)
	}

	got := reg.Registered()
	if len(got) != 2 || got[0] != DomainNutrition || got[1] != DomainQuiz {
		t.Errorf("Registered() = %v, want [nutrition quiz] in registration order", got)
	}
}
