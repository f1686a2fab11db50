package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/carelink-project/carelink-multi-agent/agents"
	"github.com/carelink-project/carelink-multi-agent/classifier"
	"github.com/carelink-project/carelink-multi-agent/config"
	"github.com/carelink-project/carelink-multi-agent/contextengine"
	"github.com/carelink-project/carelink-multi-agent/history"
	"github.com/carelink-project/carelink-multi-agent/logger"
	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/session"
	"github.com/carelink-project/carelink-multi-agent/types"
)

type fakeLLM struct {
	out string
	err error
}

func (f *fakeLLM) Chat(context.Context, string, string) (string, error) {
	return f.out, f.err
}

type fakeHandler struct {
	answer string
	err    error
	calls  int
}

func (h *fakeHandler) Handle(context.Context, *agents.Request) (*agents.Result, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	return &agents.Result{Answer: h.answer, TokensUsed: 10}, nil
}

type fixture struct {
	orch     *Orchestrator
	sessions *session.Manager
	turns    *history.MemoryStore
	handlers map[registry.Domain]*fakeHandler
}

func newFixture(t *testing.T, classifierOut string, synth *fakeLLM, limits session.Limits) *fixture {
	t.Helper()

	caps := func(typ string) config.AgentCapabilities {
		return config.AgentCapabilities{Type: typ, Skills: []string{"s"}, Version: "1.0.0"}
	}
	reg, err := registry.Build(&config.Config{Agents: map[string]config.AgentConfig{
		"nutrition": {Name: "nutrition-agent", Mode: "local", Capabilities: caps("nutrition")},
		"trend":     {Name: "trend-agent", Mode: "local", Capabilities: caps("trend")},
		"quiz":      {Name: "quiz-agent", Mode: "local", Capabilities: caps("quiz")},
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	cls, err := classifier.New(&fakeLLM{out: classifierOut}, 0.5, "nutrition", logger.New())
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}

	turns := history.NewMemoryStore()
	engineer, err := contextengine.New(turns, &fakeLLM{out: `{"summary":"s","keywords":["k"]}`}, 5, 1, logger.New())
	if err != nil {
		t.Fatalf("engineer: %v", err)
	}
	t.Cleanup(engineer.Close)

	if limits.TTL == 0 {
		limits.TTL = time.Hour
	}
	sessions := session.NewManager(session.NewMemoryStore(), limits, logger.New())

	handlers := map[registry.Domain]*fakeHandler{
		registry.DomainNutrition: {answer: "영양 답변"},
		registry.DomainTrend:     {answer: "트렌드 답변"},
		registry.DomainQuiz:      {answer: "퀴즈 답변"},
	}
	wired := make(map[registry.Domain]agents.Handler, len(handlers))
	for d, h := range handlers {
		wired[d] = h
	}

	orch := New(Options{
		Registry:        reg,
		Classifier:      cls,
		Sessions:        sessions,
		History:         turns,
		Engineer:        engineer,
		Handlers:        wired,
		Synthesizer:     synth,
		DispatchTimeout: 5 * time.Second,
		Logger:          logger.New(),
	})
	return &fixture{orch: orch, sessions: sessions, turns: turns, handlers: handlers}
}

func (f *fixture) query(text string) *types.Query {
	s := f.sessions.CreateOrGet("u1")
	return &types.Query{Text: text, SessionID: s.ID, UserID: "u1"}
}

func TestHandleSingleDomain(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "합성 답변"}, session.Limits{})

	resp, err := f.orch.Handle(context.Background(), f.query("저염식 식단 알려줘"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Synthesis {
		t.Error("Synthesis = true for single domain")
	}
	if resp.Answer != "영양 답변" {
		t.Errorf("Answer = %q, want the agent's verbatim answer", resp.Answer)
	}
	if resp.Primary != "nutrition" {
		t.Errorf("Primary = %q", resp.Primary)
	}
	if len(resp.RoutedTo) != 1 || resp.RoutedTo[0] != "nutrition" {
		t.Errorf("RoutedTo = %v", resp.RoutedTo)
	}
}

func TestHandleMultiDomainSynthesis(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9},{"domain":"trend","confidence":0.8}]}`,
		&fakeLLM{out: "식단과 트렌드를 합친 답변"}, session.Limits{})

	resp, err := f.orch.Handle(context.Background(),
		f.query("당뇨 환자 식단이랑 최근 연구 트렌드 알려줘"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !resp.Synthesis {
		t.Error("Synthesis = false for multi-domain")
	}
	if resp.Answer != "식단과 트렌드를 합친 답변" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Primary != "nutrition" {
		t.Errorf("Primary = %q, want highest-confidence domain", resp.Primary)
	}
	if len(resp.RoutedTo) != 2 {
		t.Errorf("RoutedTo = %v", resp.RoutedTo)
	}
	if f.handlers[registry.DomainNutrition].calls != 1 || f.handlers[registry.DomainTrend].calls != 1 {
		t.Error("both handlers should be dispatched exactly once")
	}
	if f.handlers[registry.DomainQuiz].calls != 0 {
		t.Error("quiz handler dispatched without a candidate")
	}
}

func TestHandleSynthesisModelFailureFallsBackToJoin(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9},{"domain":"trend","confidence":0.8}]}`,
		&fakeLLM{err: errors.New("model down")}, session.Limits{})

	resp, err := f.orch.Handle(context.Background(), f.query("식단과 트렌드"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !resp.Synthesis {
		t.Error("Synthesis = false, want true even when the merge model failed")
	}
	for _, want := range []string{"영양 답변", "트렌드 답변"} {
		if !strings.Contains(resp.Answer, want) {
			t.Errorf("joined answer missing %q: %q", want, resp.Answer)
		}
	}
}

func TestHandlePartialFailureDegradesToSingle(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9},{"domain":"trend","confidence":0.8}]}`,
		&fakeLLM{out: "합성 답변"}, session.Limits{})
	f.handlers[registry.DomainTrend].err = errors.New("trend agent exploded")

	resp, err := f.orch.Handle(context.Background(), f.query("식단과 트렌드"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Synthesis {
		t.Error("Synthesis = true with one surviving result")
	}
	if resp.Answer != "영양 답변" {
		t.Errorf("Answer = %q", resp.Answer)
	}
	dr, ok := resp.Results["trend"]
	if !ok || dr.Success || dr.Err == "" {
		t.Errorf("failed dispatch not recorded: %+v", dr)
	}
}

func TestHandleAllDispatchesFailed(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{})
	f.handlers[registry.DomainNutrition].err = errors.New("down")

	_, err := f.orch.Handle(context.Background(), f.query("식단"))
	if types.KindOf(err) != types.FailureResponseGeneration {
		t.Errorf("kind = %v, want RESPONSE_GENERATION_FAILURE (err=%v)", types.KindOf(err), err)
	}
}

func TestHandleInvalidSession(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{})

	_, err := f.orch.Handle(context.Background(),
		&types.Query{Text: "식단", SessionID: "no-such-session", UserID: "u1"})
	if types.KindOf(err) != types.FailureInvalidSession {
		t.Errorf("kind = %v, want INVALID_SESSION", types.KindOf(err))
	}
	if f.handlers[registry.DomainNutrition].calls != 0 {
		t.Error("handler dispatched despite invalid session")
	}
}

func TestHandleHintBypassesClassifier(t *testing.T) {
	// The classifier would route to nutrition; the hint must win.
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{})

	q := f.query("퀴즈 내줘")
	q.Hint = "quiz"
	resp, err := f.orch.Handle(context.Background(), q)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Primary != "quiz" {
		t.Errorf("Primary = %q, want quiz", resp.Primary)
	}
	if f.handlers[registry.DomainNutrition].calls != 0 {
		t.Error("nutrition dispatched despite quiz hint")
	}
}

func TestHandleUnknownHint(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{})

	q := f.query("hi")
	q.Hint = "astrology"
	_, err := f.orch.Handle(context.Background(), q)
	if types.KindOf(err) != types.FailureUnknownAgentType {
		t.Errorf("kind = %v, want UNKNOWN_AGENT_TYPE", types.KindOf(err))
	}
}

func TestHandleUnregisteredCandidates(t *testing.T) {
	// literature is a known domain but not registered in this fixture.
	f := newFixture(t,
		`{"candidates":[{"domain":"literature","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{})

	_, err := f.orch.Handle(context.Background(), f.query("논문 찾아줘"))
	if types.KindOf(err) != types.FailureUnknownAgentType {
		t.Errorf("kind = %v, want UNKNOWN_AGENT_TYPE", types.KindOf(err))
	}
}

func TestHandleContextLimit(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{MaxTurns: 1})

	q := f.query("식단")
	if _, err := f.orch.Handle(context.Background(), q); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	_, err := f.orch.Handle(context.Background(), q)
	if types.KindOf(err) != types.FailureContextLimit {
		t.Errorf("kind = %v, want CONTEXT_LIMIT_EXCEEDED", types.KindOf(err))
	}
}

func TestHandleEmergencyDisclaimer(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{})

	resp, err := f.orch.Handle(context.Background(), f.query("가슴 통증이 심한데 뭘 먹어야 하죠"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !resp.Emergency || resp.Disclaimer == "" {
		t.Errorf("Emergency=%v Disclaimer=%q, want flagged with disclaimer", resp.Emergency, resp.Disclaimer)
	}
}

func TestHandleRecordsTurn(t *testing.T) {
	f := newFixture(t,
		`{"candidates":[{"domain":"nutrition","confidence":0.9}]}`,
		&fakeLLM{out: "x"}, session.Limits{})

	q := f.query("식단 알려줘")
	if _, err := f.orch.Handle(context.Background(), q); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	s, err := f.sessions.Get(q.SessionID)
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if s.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1", s.TurnCount)
	}

	turns, err := f.turns.RecentTurns(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 1 || turns[0].Input != "식단 알려줘" || turns[0].Output != "영양 답변" {
		t.Errorf("recorded turns = %+v", turns)
	}
}
