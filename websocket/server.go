package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RoutingEvent is one observable step of request handling.
type RoutingEvent struct {
	Type      string   `json:"type"` // "classified", "dispatch", "synthesis", "fallback"
	SessionID string   `json:"session_id,omitempty"`
	Domains   []string `json:"domains,omitempty"`
	Message   string   `json:"message,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// EventServer serves the /ws endpoint and broadcasts routing events.
type EventServer struct {
	hub    *Hub
	port   int
	server *http.Server
	mu     sync.Mutex
}

// NewEventServer creates an event server on its own port.
func NewEventServer(port int) *EventServer {
	return &EventServer{hub: NewHub(), port: port}
}

// Start runs the hub and the HTTP listener in the background.
func (s *EventServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("websocket server error: %v\n", err)
		}
	}()
	return nil
}

// Stop closes the listener.
func (s *EventServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// Emit broadcasts one routing event to all observers.
func (s *EventServer) Emit(event RoutingEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339)
	}
	if b, err := json.Marshal(event); err == nil {
		s.hub.Broadcast(b)
	}
}

func (s *EventServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := NewClient(s.hub, conn)
	client.hub.register <- client
	go client.writePump()
	go client.readPump()
}
