// Package api exposes the HTTP surface of the assistant core: the chat
// endpoint, session reset, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/carelink-project/carelink-multi-agent/fallback"
	"github.com/carelink-project/carelink-multi-agent/logger"
	"github.com/carelink-project/carelink-multi-agent/metrics"
	"github.com/carelink-project/carelink-multi-agent/orchestrator"
	"github.com/carelink-project/carelink-multi-agent/registry"
	"github.com/carelink-project/carelink-multi-agent/session"
	"github.com/carelink-project/carelink-multi-agent/types"
)

// Server is the HTTP front of the orchestrator.
type Server struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Manager
	log      *logger.Logger
	server   *http.Server
}

// NewServer wires the HTTP routes.
func NewServer(port int, orch *orchestrator.Orchestrator, sessions *session.Manager, log *logger.Logger) *Server {
	s := &Server{
		orch:     orch,
		sessions: sessions,
		log:      log.WithComponent("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/session/reset", s.handleReset)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           withCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.log.Infof("listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleChat is the main conversational endpoint.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &types.ChatResponse{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, &types.ChatResponse{
			Success: false,
			Error:   "message is required",
		})
		return
	}

	// A pinned domain is validated at the edge so a typo never reaches
	// the model.
	if req.DomainHint != "" {
		if _, err := registry.ParseDomain(req.DomainHint); err != nil {
			s.writeFailure(w, req.SessionID,
				types.NewFailure(types.FailureUnknownAgentType, err))
			return
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		userID := req.UserID
		if userID == "" {
			userID = "anonymous"
		}
		sessionID = s.sessions.CreateOrGet(userID).ID
	}

	q := &types.Query{
		Text:      req.Message,
		SessionID: sessionID,
		UserID:    req.UserID,
		Profile:   req.Profile,
		Hint:      req.DomainHint,
		Context:   req.Context,
	}

	resp, err := s.orch.Handle(r.Context(), q)
	if err != nil {
		s.writeFailure(w, sessionID, err)
		return
	}

	out := &types.ChatResponse{
		Success:   true,
		Message:   resp.Answer,
		AgentType: resp.Primary,
		RoutedTo:  resp.RoutedTo,
		Synthesis: resp.Synthesis,
		SessionID: sessionID,
	}
	if resp.ContextState != "" {
		out.ContextInfo = map[string]string{"context_state": resp.ContextState}
	}
	if resp.Emergency {
		if out.ContextInfo == nil {
			out.ContextInfo = map[string]string{}
		}
		out.ContextInfo["disclaimer"] = resp.Disclaimer
	}
	writeJSON(w, http.StatusOK, out)
}

// handleReset clears accumulated session context for one domain or all.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Domain    string `json:"domain,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, &types.ChatResponse{
			Success: false,
			Error:   "session_id is required",
		})
		return
	}
	if err := s.sessions.Reset(req.SessionID, req.Domain); err != nil {
		s.writeFailure(w, req.SessionID,
			types.NewFailure(types.FailureInvalidSession, err))
		return
	}
	writeJSON(w, http.StatusOK, &types.ChatResponse{
		Success:   true,
		SessionID: req.SessionID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeFailure maps an orchestrator error to a status code and the
// user-safe fallback message. Internal causes are logged, never sent.
func (s *Server) writeFailure(w http.ResponseWriter, sessionID string, err error) {
	kind := types.KindOf(err)
	fb := fallback.Map(kind)
	s.log.Warnf("request failed: %v", err)
	writeJSON(w, statusFor(kind), &types.ChatResponse{
		Success:      false,
		Message:      fb.Message,
		SessionID:    sessionID,
		Error:        fb.Code,
		FallbackType: string(kind),
	})
}

func statusFor(kind types.FailureKind) int {
	switch kind {
	case types.FailureClassification, types.FailureNonMedicalDomain:
		return http.StatusUnprocessableEntity
	case types.FailureContextLimit:
		return http.StatusRequestEntityTooLarge
	case types.FailureInvalidSession:
		return http.StatusGone
	case types.FailureUnknownAgentType:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("encode response:", err)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
