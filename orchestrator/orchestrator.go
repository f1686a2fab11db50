// Package orchestrator routes a classified query to one or more domain
// agents, merges their answers and keeps session and user context moving.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carelink-project/carelink-multi-agent/agents"
	"github.com/carelink-project/carelink-multi-agent/classifier"
	"github.com/carelink-project/carelink-multi-agent/contextengine"
	"github.com/carelink-project/carelink-multi-agent/history"
	"github.com/carelink-project/carelink-multi-agent/llm"
	"github.com/carelink-project/carelink-multi-agent/logger"
	"github.com/carelink-project/carelink-multi-agent/metrics"
	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/session"
	"github.com/carelink-project/carelink-multi-agent/types"
	"github.com/carelink-project/carelink-multi-agent/websocket"
)

// EventSink receives routing events for live observation. May be nil.
type EventSink interface {
	Emit(event websocket.RoutingEvent)
}

const emergencyDisclaimer = "⚠️ 응급 증상이 의심됩니다. 즉시 119에 연락하거나 가까운 응급실을 방문해 주세요."

// Orchestrator is the central request handler. All collaborators are
// injected at construction; it keeps no global state.
type Orchestrator struct {
	registry   *registry.Registry
	classifier *classifier.Classifier
	sessions   *session.Manager
	turns      history.Store
	engineer   *contextengine.Engineer
	handlers   map[registry.Domain]agents.Handler
	synth      llm.Client
	events     EventSink

	dispatchTimeout time.Duration
	log             *logger.Logger
}

// Options wires an orchestrator.
type Options struct {
	Registry        *registry.Registry
	Classifier      *classifier.Classifier
	Sessions        *session.Manager
	History         history.Store
	Engineer        *contextengine.Engineer
	Handlers        map[registry.Domain]agents.Handler
	Synthesizer     llm.Client
	Events          EventSink
	DispatchTimeout time.Duration
	Logger          *logger.Logger
}

// New builds the orchestrator.
func New(opts Options) *Orchestrator {
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 20 * time.Second
	}
	return &Orchestrator{
		registry:        opts.Registry,
		classifier:      opts.Classifier,
		sessions:        opts.Sessions,
		turns:           opts.History,
		engineer:        opts.Engineer,
		handlers:        opts.Handlers,
		synth:           opts.Synthesizer,
		events:          opts.Events,
		dispatchTimeout: opts.DispatchTimeout,
		log:             opts.Logger.WithComponent("orchestrator"),
	}
}

// Handle processes one query end to end. All returned errors carry a
// types.FailureKind for the transport layer and fallback policy.
func (o *Orchestrator) Handle(ctx context.Context, q *types.Query) (*types.SynthesizedResponse, error) {
	start := time.Now()
	resp, err := o.handle(ctx, q)
	metrics.RequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(string(types.KindOf(err))).Inc()
		o.emit("fallback", q.SessionID, nil, string(types.KindOf(err)))
		return nil, err
	}
	metrics.RequestsTotal.WithLabelValues("ok").Inc()
	return resp, nil
}

func (o *Orchestrator) handle(ctx context.Context, q *types.Query) (*types.SynthesizedResponse, error) {
	// 1. Session must be live before any model call is spent.
	sess, err := o.sessions.Get(q.SessionID)
	if err != nil {
		return nil, types.NewFailure(types.FailureInvalidSession, err)
	}

	prior := o.engineer.Context(ctx, sess.UserID)

	// 2. Classification (skipped when the caller pinned a domain).
	cls, err := o.classify(ctx, q, prior)
	if err != nil {
		var f *types.Failure
		if errors.As(err, &f) {
			return nil, err
		}
		return nil, types.NewFailure(types.FailureClassification, err)
	}
	o.emit("classified", q.SessionID, domainsOf(cls.Candidates), "")

	// 3. Resolve candidates; unresolved ones are dropped, not fatal.
	resolved := o.resolve(cls.Candidates)
	if len(resolved) == 0 {
		return nil, types.NewFailure(types.FailureUnknownAgentType,
			fmt.Errorf("no candidate resolved: %v", domainsOf(cls.Candidates)))
	}

	// 4. Concurrent, isolated dispatch.
	results := o.dispatch(ctx, q, prior, resolved)
	o.emit("dispatch", q.SessionID, keys(results), "")

	// 5. Compose the final answer.
	resp, err := o.compose(ctx, q, cls, results)
	if err != nil {
		return nil, err
	}
	if cls.Emergency {
		resp.Emergency = true
		resp.Disclaimer = emergencyDisclaimer
	}

	// 6. The turn is recorded before the response is returned. The append
	// deliberately survives a dropped client connection.
	turn := &types.ConversationTurn{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Domain:    resp.Primary,
		Input:     q.Text,
		Output:    resp.Answer,
		CreatedAt: time.Now(),
	}
	if err := o.sessions.AppendTurn(sess.ID, turn); err != nil {
		switch {
		case errors.Is(err, session.ErrContextLimitExceeded):
			return nil, types.NewFailure(types.FailureContextLimit, err)
		case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrNotFound):
			return nil, types.NewFailure(types.FailureInvalidSession, err)
		default:
			return nil, types.NewFailure(types.FailureResponseGeneration, err)
		}
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.turns.SaveTurn(saveCtx, turn); err != nil {
		o.log.Error("save turn", err)
	}

	// 7. Background context refresh; never on the critical path.
	o.engineer.Enqueue(sess.UserID)
	resp.ContextState = string(o.engineer.Freshness(sess.UserID))

	return resp, nil
}

func (o *Orchestrator) classify(ctx context.Context, q *types.Query, prior *types.UserContext) (*types.ClassificationResult, error) {
	if q.Hint != "" {
		dom, err := registry.ParseDomain(q.Hint)
		if err != nil {
			return nil, types.NewFailure(types.FailureUnknownAgentType, err)
		}
		return &types.ClassificationResult{
			Candidates: []types.Candidate{{Domain: string(dom), Confidence: 1.0}},
			Emergency:  classifier.IsEmergency(q.Text),
		}, nil
	}
	return o.classifier.Classify(ctx, q.Text, prior)
}

// resolve maps candidates to descriptors, dropping unknown domains with a
// warning instead of failing the whole request.
func (o *Orchestrator) resolve(candidates []types.Candidate) []*registry.AgentDescriptor {
	var out []*registry.AgentDescriptor
	for _, cand := range candidates {
		dom, err := registry.ParseDomain(cand.Domain)
		if err != nil {
			o.log.Warnf("dropping unknown candidate %q", cand.Domain)
			continue
		}
		desc, err := o.registry.Resolve(dom)
		if err != nil {
			o.log.Warnf("dropping unregistered candidate %q", cand.Domain)
			continue
		}
		if _, ok := o.handlers[dom]; !ok {
			o.log.Warnf("dropping candidate %q: no handler wired", cand.Domain)
			continue
		}
		out = append(out, desc)
	}
	return out
}

// dispatch fans out to every resolved handler and waits for all of them.
// Each dispatch is isolated: one failure or timeout never cancels its
// siblings.
func (o *Orchestrator) dispatch(ctx context.Context, q *types.Query, prior *types.UserContext, descs []*registry.AgentDescriptor) map[string]*types.DispatchResult {
	results := make(map[string]*types.DispatchResult, len(descs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	req := &agents.Request{
		Text:    q.Text,
		Profile: q.Profile,
		Lang:    q.Lang,
		Context: prior,
		Extra:   q.Context,
	}

	for _, desc := range descs {
		wg.Add(1)
		go func(desc *registry.AgentDescriptor) {
			defer wg.Done()

			dctx, cancel := context.WithTimeout(ctx, o.dispatchTimeout)
			defer cancel()

			dr := &types.DispatchResult{Domain: string(desc.Domain)}
			res, err := o.handlers[desc.Domain].Handle(dctx, req)
			if err != nil {
				dr.Err = err.Error()
				o.log.Error(fmt.Sprintf("dispatch to %s failed", desc.Domain), err)
				metrics.DispatchesTotal.WithLabelValues(string(desc.Domain), "error").Inc()
			} else {
				dr.Success = true
				dr.Answer = res.Answer
				dr.Sources = res.Sources
				dr.TokensUsed = res.TokensUsed
				dr.Meta = res.Meta
				metrics.DispatchesTotal.WithLabelValues(string(desc.Domain), "ok").Inc()
			}

			mu.Lock()
			results[string(desc.Domain)] = dr
			mu.Unlock()
		}(desc)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) emit(eventType, sessionID string, domains []string, message string) {
	if o.events == nil {
		return
	}
	o.events.Emit(websocket.RoutingEvent{
		Type:      eventType,
		SessionID: sessionID,
		Domains:   domains,
		Message:   message,
	})
}

func domainsOf(candidates []types.Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Domain)
	}
	return out
}

func keys(m map[string]*types.DispatchResult) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
