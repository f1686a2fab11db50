// Package contextengine distills recent conversation turns into a durable
// per-user summary and keyword set, off the live request path.
package contextengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/carelink-project/carelink-multi-agent/history"
	"github.com/carelink-project/carelink-multi-agent/llm"
	"github.com/carelink-project/carelink-multi-agent/logger"
	"github.com/carelink-project/carelink-multi-agent/metrics"
	"github.com/carelink-project/carelink-multi-agent/types"
)

const summarySystem = `You maintain a short profile of a chronic-disease patient's interests
based on their recent conversation turns. Produce a concise narrative summary
(2-3 sentences, same language as the turns) and 3-5 topic keywords.
Return ONLY a JSON object: {"summary":"...","keywords":["...",...]}
No prose, no markdown fences.`

const summarySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["summary", "keywords"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "keywords": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 1,
      "maxItems": 8
    }
  }
}`

// Freshness describes whether a user's stored context reflects their
// latest turns.
type Freshness string

const (
	Fresh      Freshness = "fresh"
	Stale      Freshness = "stale"
	Refreshing Freshness = "refreshing"
)

// Engineer reads recent history and upserts the UserContext. Refreshes run
// on a bounded worker pool; duplicate requests for the same user collapse
// into one pending refresh.
type Engineer struct {
	store   history.Store
	llm     llm.Client
	decoder *llm.Decoder
	window  int
	cache   *ristretto.Cache
	log     *logger.Logger

	mu      sync.Mutex
	pending map[string]bool
	state   map[string]Freshness

	queue chan string
	done  chan struct{}
	wg    sync.WaitGroup
}

// New builds the engineer. window bounds how many recent turns feed one
// refresh; workers bounds refresh concurrency.
func New(store history.Store, client llm.Client, window, workers int, log *logger.Logger) (*Engineer, error) {
	decoder, err := llm.NewDecoder(summarySchema)
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("context cache: %w", err)
	}
	if window <= 0 {
		window = 5
	}
	if workers <= 0 {
		workers = 1
	}

	e := &Engineer{
		store:   store,
		llm:     client,
		decoder: decoder,
		window:  window,
		cache:   cache,
		log:     log.WithComponent("contextengine"),
		pending: make(map[string]bool),
		state:   make(map[string]Freshness),
		queue:   make(chan string, 256),
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e, nil
}

// Close drains the workers. Queued refreshes not yet started are dropped.
func (e *Engineer) Close() {
	close(e.done)
	e.wg.Wait()
	e.cache.Close()
}

// Context always returns a value: the cached or stored context, or an
// empty default for users with no history yet. It never errors; storage
// failures degrade to the empty default.
func (e *Engineer) Context(ctx context.Context, userID string) *types.UserContext {
	if v, ok := e.cache.Get(userID); ok {
		if uc, ok := v.(*types.UserContext); ok {
			return uc
		}
	}

	uc, err := e.store.UserContext(ctx, userID)
	if err != nil {
		e.log.Error("load user context", err)
		uc = nil
	}
	if uc == nil {
		uc = &types.UserContext{UserID: userID, Keywords: []string{}}
	}
	e.cache.Set(userID, uc, 1)
	return uc
}

// Enqueue schedules a background refresh for the user. Non-blocking: when
// the queue is full the request is dropped and retried on the next turn.
func (e *Engineer) Enqueue(userID string) {
	e.mu.Lock()
	if e.pending[userID] {
		e.mu.Unlock()
		return
	}
	e.pending[userID] = true
	e.state[userID] = Stale
	e.mu.Unlock()

	select {
	case e.queue <- userID:
	default:
		e.mu.Lock()
		delete(e.pending, userID)
		e.mu.Unlock()
		e.log.Warnf("refresh queue full, dropping refresh for user %s", userID)
	}
}

// Freshness reports the observable refresh state for a user.
func (e *Engineer) Freshness(userID string) Freshness {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.state[userID]; ok {
		return s
	}
	return Fresh
}

func (e *Engineer) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case userID := <-e.queue:
			e.mu.Lock()
			delete(e.pending, userID)
			e.state[userID] = Refreshing
			e.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := e.Refresh(ctx, userID)
			cancel()

			e.mu.Lock()
			if err != nil {
				e.state[userID] = Stale
			} else {
				e.state[userID] = Fresh
			}
			e.mu.Unlock()
			if err != nil {
				metrics.ContextRefreshTotal.WithLabelValues("error").Inc()
				e.log.Error(fmt.Sprintf("refresh context for user %s", userID), err)
			} else {
				metrics.ContextRefreshTotal.WithLabelValues("ok").Inc()
			}
		}
	}
}

// Refresh reads the user's recent turns and upserts the distilled context.
// Empty history is a no-op. Malformed model output leaves the prior
// context unchanged.
func (e *Engineer) Refresh(ctx context.Context, userID string) error {
	turns, err := e.store.RecentTurns(ctx, userID, e.window)
	if err != nil {
		return fmt.Errorf("recent turns: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(fmt.Sprintf("[%s] user: %s\nassistant: %s\n", t.Domain, t.Input, t.Output))
	}

	var out struct {
		Summary  string   `json:"summary"`
		Keywords []string `json:"keywords"`
	}
	if err := llm.ChatJSON(ctx, e.llm, e.decoder, summarySystem, sb.String(), &out, 2); err != nil {
		// Keep whatever context we had rather than overwrite with garbage.
		return fmt.Errorf("summarize: %w", err)
	}
	if len(out.Keywords) > 5 {
		out.Keywords = out.Keywords[:5]
	}

	uc := &types.UserContext{
		UserID:    userID,
		Summary:   strings.TrimSpace(out.Summary),
		Keywords:  out.Keywords,
		UpdatedAt: time.Now(),
	}
	if err := e.store.SaveUserContext(ctx, uc); err != nil {
		return fmt.Errorf("save user context: %w", err)
	}
	e.cache.Set(userID, uc, 1)

	marshaled, _ := json.Marshal(out.Keywords)
	e.log.Infof("refreshed context for user %s keywords=%s", userID, marshaled)
	return nil
}
