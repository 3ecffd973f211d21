package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runner"
	"github.com/hochfrequenz/inbox-orchestrator/internal/runstore"
)

// Server is the HTTP API server for the delegation dashboard
type Server struct {
	ctrl       *runner.Controller
	archive    *runstore.Store // nil when the archive is disabled
	addr       string
	mux        *http.ServeMux
	sseHub     *SSEHub
	httpServer *http.Server
}

// NewServer creates a new API server. archive may be nil.
func NewServer(ctrl *runner.Controller, archive *runstore.Store, addr string) *Server {
	s := &Server{
		ctrl:    ctrl,
		archive: archive,
		addr:    addr,
		mux:     http.NewServeMux(),
		sseHub:  NewSSEHub(),
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/state", s.stateHandler())
	s.mux.HandleFunc("/api/run", s.runHandler())
	s.mux.HandleFunc("/api/retry", s.retryHandler())
	s.mux.HandleFunc("/api/expand", s.expandHandler())
	s.mux.HandleFunc("/api/sample", s.sampleHandler())
	s.mux.HandleFunc("/api/history", s.historyHandler())
	s.mux.HandleFunc("/api/archive", s.archiveHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/api/ws", s.wsHandler())
}

// Start starts the HTTP server and blocks until it is shut down
func (s *Server) Start() error {
	go s.sseHub.Run()
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Broadcast sends an event to all SSE and WebSocket clients
func (s *Server) Broadcast(event SSEEvent) {
	s.sseHub.Broadcast(event)
}

// BroadcastState pushes a state event for the given snapshot
func (s *Server) BroadcastState(snap runner.Snapshot) {
	s.Broadcast(SSEEvent{Type: "state", Data: stateToResponse(snap)})
}

// BroadcastRunComplete pushes a run_complete event for a settled run
func (s *Server) BroadcastRunComplete(rec domain.RunRecord) {
	s.Broadcast(SSEEvent{Type: "run_complete", Data: recordToResponse(&rec)})
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
