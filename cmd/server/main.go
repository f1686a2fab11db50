// Server entrypoint: wires config, storage, model clients, the domain
// agents and the orchestrator, then serves HTTP until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carelink-project/carelink-multi-agent/agents"
	"github.com/carelink-project/carelink-multi-agent/api"
	"github.com/carelink-project/carelink-multi-agent/classifier"
	"github.com/carelink-project/carelink-multi-agent/config"
	"github.com/carelink-project/carelink-multi-agent/contextengine"
	"github.com/carelink-project/carelink-multi-agent/history"
	"github.com/carelink-project/carelink-multi-agent/llm"
	"github.com/carelink-project/carelink-multi-agent/logger"
	"github.com/carelink-project/carelink-multi-agent/orchestrator"
	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/session"
	"github.com/carelink-project/carelink-multi-agent/websocket"
)

func main() {
	configPath := flag.String("config", "configs/agents.yaml", "agent table path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	log := logger.Global()
	if lvl, err := logger.ParseLevel(env.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	log = log.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agentCfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		return fmt.Errorf("agent config: %w", err)
	}
	reg, err := registry.Build(agentCfg)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	model, err := llm.NewFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}

	// Conversation history: Postgres when configured, in-memory otherwise.
	var turns history.Store
	if env.PostgresDSN != "" {
		pg, err := history.NewPostgresStore(ctx, env.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pg.Close()
		turns = pg
		log.Info("using postgres history store")
	} else {
		turns = history.NewMemoryStore()
		log.Warn("POSTGRES_DSN not set, conversation history is in-memory only")
	}

	sessions := session.NewManager(session.NewMemoryStore(), session.Limits{
		TTL:       env.SessionTTL,
		MaxTurns:  env.MaxTurns,
		MaxTokens: env.MaxTokenEstim,
	}, logger.Global())

	engineer, err := contextengine.New(turns, model, env.HistoryWindow, env.RefreshWorkers, logger.Global())
	if err != nil {
		return fmt.Errorf("context engineer: %w", err)
	}
	defer engineer.Close()

	cls, err := classifier.New(model, env.MinConfidence, env.DefaultDomain, logger.Global())
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	handlers, err := buildHandlers(reg, model)
	if err != nil {
		return err
	}

	events := websocket.NewEventServer(env.WSPort)
	if err := events.Start(); err != nil {
		return fmt.Errorf("event server: %w", err)
	}
	defer events.Stop()

	orch := orchestrator.New(orchestrator.Options{
		Registry:        reg,
		Classifier:      cls,
		Sessions:        sessions,
		History:         turns,
		Engineer:        engineer,
		Handlers:        handlers,
		Synthesizer:     model,
		Events:          events,
		DispatchTimeout: env.DispatchTimeout,
		Logger:          logger.Global(),
	})

	srv := api.NewServer(env.ServerPort, orch, sessions, logger.Global())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Expired-session sweep for memory hygiene; expiry itself is lazy.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions.Sweep()
			}
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildHandlers creates one handler per registered domain, local or remote
// according to its descriptor.
func buildHandlers(reg *registry.Registry, model llm.Client) (map[registry.Domain]agents.Handler, error) {
	handlers := make(map[registry.Domain]agents.Handler)
	for _, dom := range reg.Registered() {
		desc, err := reg.Resolve(dom)
		if err != nil {
			return nil, err
		}
		switch desc.Mode {
		case registry.ModeRemote:
			h, err := agents.NewRemoteAgent(desc)
			if err != nil {
				return nil, err
			}
			handlers[dom] = h
		default:
			h, err := agents.NewLocalAgent(desc, model)
			if err != nil {
				return nil, err
			}
			handlers[dom] = h
		}
	}
	return handlers, nil
}
