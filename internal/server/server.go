// Package server implements the demo agent backend: the HTTP surface of the
// streaming chat protocol backed by a scripted agent, so the client stack can
// be exercised end to end without a model runtime.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentforge-dev/agentforge/pkg/catalog"
)

// Server hosts the agent protocol endpoints.
type Server struct {
	cfg    *Config
	store  *Store
	logger *slog.Logger
}

// New creates a Server. A nil logger falls back to slog's default.
func New(cfg *Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		store:  NewStore(),
		logger: logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/agent", s.handleCreateSession).Methods("POST")
	r.HandleFunc("/api/agent/{session_id}", s.handleDeleteSession).Methods("DELETE")
	r.HandleFunc("/api/agent/{session_id}/chat", s.handleChat).Methods("POST")
	r.HandleFunc("/api/agent/{session_id}/approve", s.handleApprove).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

// Build creates the HTTP server. WriteTimeout stays zero: turn streams are
// long-lived by design.
func (s *Server) Build() *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:     s.Router(),
		ReadTimeout: 15 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "forge-server",
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelID     string          `json:"model_id"`
		SkillIDs    []string        `json:"skill_ids"`
		HITLEnabled bool            `json:"hitl_enabled"`
		SandboxMap  map[string]bool `json:"sandbox_map"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Collect every catalog violation so the caller can fix them all at once.
	var verr *multierror.Error
	if _, ok := catalog.ModelByID(req.ModelID); !ok {
		verr = multierror.Append(verr, fmt.Errorf("unknown model %q", req.ModelID))
	}
	for _, id := range req.SkillIDs {
		if _, ok := catalog.SkillByID(id); !ok {
			verr = multierror.Append(verr, fmt.Errorf("unknown skill %q", id))
		}
	}
	if err := verr.ErrorOrNil(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.store.Create(req.ModelID, req.SkillIDs, req.HITLEnabled, req.SandboxMap)
	sessionsCreated.Inc()
	sessionsActive.Set(float64(s.store.Len()))
	s.logger.Info("session created",
		"session_id", sess.ID,
		"model_id", sess.ModelID,
		"skills", len(sess.SkillIDs),
		"hitl", sess.HITLEnabled,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"session_id": sess.ID})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	if s.store.Delete(id) {
		s.logger.Info("session deleted", "session_id", id)
	}
	sessionsActive.Set(float64(s.store.Len()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.logger.Info("turn started", "session_id", sess.ID)
	s.streamTurn(w, r, s.scriptChat(sess, req.Message))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.store.Get(mux.Vars(r)["session_id"])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Decision   string                 `json:"decision"`
		EditedArgs map[string]interface{} `json:"edited_args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	actions, ok := s.store.TakeActions(sess.ID)
	if !ok {
		http.Error(w, "no pending approval for session", http.StatusConflict)
		return
	}

	s.logger.Info("turn resumed", "session_id", sess.ID, "decision", req.Decision)
	s.streamTurn(w, r, s.scriptApproval(sess, actions, req.Decision, req.EditedArgs))
}

func (s *Server) streamTurn(w http.ResponseWriter, r *http.Request, evs []event) {
	start := time.Now()
	ch := make(chan event)
	go s.emit(r.Context(), ch, evs)
	s.streamEvents(r.Context(), w, ch)
	turnDuration.Observe(time.Since(start).Seconds())
}
