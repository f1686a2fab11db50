package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/carelink-project/carelink-multi-agent/config"
	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/types"
)

type captureLLM struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
}

func (c *captureLLM) Chat(_ context.Context, system, user string) (string, error) {
	c.lastSystem = system
	c.lastUser = user
	return c.answer, c.err
}

func nutritionDesc() *registry.AgentDescriptor {
	return &registry.AgentDescriptor{
		Domain: registry.DomainNutrition,
		Name:   "nutrition-agent",
		Mode:   registry.ModeLocal,
		Meta: config.AgentCapabilities{
			Type:    "nutrition",
			Skills:  []string{"dietary-guidance"},
			Version: "1.0.0",
			MaxResults: map[string]int{
				"general":    5,
				"researcher": 10,
			},
		},
	}
}

func TestNewLocalAgentRejectsUnknownDomain(t *testing.T) {
	desc := &registry.AgentDescriptor{Domain: registry.Domain("astrology")}
	if _, err := NewLocalAgent(desc, &captureLLM{}); err == nil {
		t.Fatal("NewLocalAgent accepted a domain with no prompt")
	}
}

func TestLocalAgentHandle(t *testing.T) {
	llm := &captureLLM{answer: "하루 나트륨 섭취를 2g 이하로 유지하세요."}
	agent, err := NewLocalAgent(nutritionDesc(), llm)
	if err != nil {
		t.Fatalf("NewLocalAgent: %v", err)
	}

	res, err := agent.Handle(context.Background(), &Request{
		Text:    "저염식 알려줘",
		Profile: types.ProfileGeneral,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Answer != llm.answer {
		t.Errorf("Answer = %q", res.Answer)
	}
	if res.TokensUsed <= 0 {
		t.Errorf("TokensUsed = %d, want > 0", res.TokensUsed)
	}
	if res.Meta["agent"] != "nutrition-agent" {
		t.Errorf("Meta = %v", res.Meta)
	}
	if !strings.Contains(llm.lastSystem, "at most 5") {
		t.Errorf("system prompt missing general profile bound: %q", llm.lastSystem)
	}
}

func TestLocalAgentProfileBounds(t *testing.T) {
	tests := []struct {
		profile types.Profile
		want    string
	}{
		{types.ProfileGeneral, "at most 5"},
		{types.ProfileResearcher, "at most 10"},
		// patient has no explicit entry, falls back to general
		{types.ProfilePatient, "at most 5"},
	}
	for _, tt := range tests {
		llm := &captureLLM{answer: "ok"}
		agent, err := NewLocalAgent(nutritionDesc(), llm)
		if err != nil {
			t.Fatalf("NewLocalAgent: %v", err)
		}
		if _, err := agent.Handle(context.Background(), &Request{Text: "q", Profile: tt.profile}); err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if !strings.Contains(llm.lastSystem, tt.want) {
			t.Errorf("profile %s: system prompt %q missing %q", tt.profile, llm.lastSystem, tt.want)
		}
	}
}

func TestLocalAgentInjectsUserContext(t *testing.T) {
	llm := &captureLLM{answer: "ok"}
	agent, err := NewLocalAgent(nutritionDesc(), llm)
	if err != nil {
		t.Fatalf("NewLocalAgent: %v", err)
	}

	_, err = agent.Handle(context.Background(), &Request{
		Text: "오늘 뭐 먹지",
		Context: &types.UserContext{
			UserID:   "u1",
			Summary:  "만성신부전 환자",
			Keywords: []string{"저염식", "칼륨 제한"},
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	for _, want := range []string{"만성신부전 환자", "저염식", "오늘 뭐 먹지"} {
		if !strings.Contains(llm.lastUser, want) {
			t.Errorf("user prompt missing %q: %q", want, llm.lastUser)
		}
	}
}

func TestLocalAgentPropagatesModelError(t *testing.T) {
	llm := &captureLLM{err: errors.New("quota exceeded")}
	agent, err := NewLocalAgent(nutritionDesc(), llm)
	if err != nil {
		t.Fatalf("NewLocalAgent: %v", err)
	}
	if _, err := agent.Handle(context.Background(), &Request{Text: "q"}); err == nil {
		t.Fatal("Handle succeeded, want error")
	}
}
