// Package http exposes a sequencing engine over a JSON REST API. The server
// is stateless between requests: each operation loads the session snapshot
// from the store, replays it onto a fresh engine built from the manifest,
// applies the operation, and persists the new snapshot under the session
// manager's lock.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlms/sequent"
	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/pkg/domain"
	"github.com/openlms/sequent/pkg/session"
)

// Server hosts sequencing sessions for one course manifest.
type Server struct {
	manifest *domain.Manifest
	sessions *session.Manager
	logger   *slog.Logger
	engOpts  []sequent.Option
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithEngineOptions forwards options to every per-request engine, for wiring
// lifecycle hooks or browse mode into hosted sessions.
func WithEngineOptions(opts ...sequent.Option) Option {
	return func(s *Server) { s.engOpts = append(s.engOpts, opts...) }
}

// NewServer creates a server for the given manifest and session manager.
func NewServer(m *domain.Manifest, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		manifest: m,
		sessions: sessions,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router for the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/sessions", s.createSession)
	r.Get("/sessions", s.listSessions)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Delete("/", s.deleteSession)
		r.Post("/navigate", s.navigate)
		r.Post("/progress", s.updateProgress)
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Browse    bool   `json:"browse,omitempty"`
}

type navigateRequest struct {
	Request string `json:"request"`
	Target  string `json:"target,omitempty"`
}

type progressRequest struct {
	ActivityID string   `json:"activity_id"`
	Completed  *bool    `json:"completed,omitempty"`
	Satisfied  *bool    `json:"satisfied,omitempty"`
	Measure    *float64 `json:"measure,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// createSession builds a new engine, initializes it, and persists the first
// snapshot.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	opts := s.engineOptions()
	if body.SessionID != "" {
		opts = append(opts, sequent.WithSessionID(body.SessionID))
	}
	if body.Browse {
		opts = append(opts, sequent.WithBrowseMode())
	}

	eng, err := sequent.New(r.Context(), s.manifest, opts...)
	if err != nil {
		s.logger.Error("failed to build engine", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := eng.Initialize(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.sessions.Save(r.Context(), eng.ID(), eng.Snapshot()); err != nil {
		s.logger.Error("failed to persist session", "session_id", eng.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var state domain.SessionSnapshot
	err := s.withEngine(r.Context(), sessionID, func(_ context.Context, eng *sequent.Engine) error {
		state = eng.State()
		return nil
	})
	if err != nil {
		s.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// navigate applies one navigation request to the session. Denied requests
// are a normal outcome and reported with 200; the result carries the denial
// code and reason.
func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var result domain.NavigationResult
	err := s.withEngine(r.Context(), sessionID, func(ctx context.Context, eng *sequent.Engine) error {
		var err error
		result, err = eng.Navigate(ctx, domain.NavigationRequest(body.Request), body.Target)
		return err
	})
	if err != nil {
		s.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) updateProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body progressRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.ActivityID == "" {
		writeError(w, http.StatusBadRequest, "activity_id is required")
		return
	}

	var result domain.ProgressResult
	err := s.withEngine(r.Context(), sessionID, func(ctx context.Context, eng *sequent.Engine) error {
		var err error
		result, err = eng.UpdateProgress(ctx, body.ActivityID, domain.ProgressUpdate{
			Completed: body.Completed,
			Satisfied: body.Satisfied,
			Measure:   body.Measure,
		})
		return err
	})
	if err != nil {
		s.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// deleteSession terminates the session and removes it from the store.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var result domain.TerminateResult
	err := s.sessions.WithLock(r.Context(), sessionID, func(ctx context.Context) error {
		snap, err := s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		eng, err := s.buildEngine(ctx, snap)
		if err != nil {
			return err
		}
		result, err = eng.Terminate(ctx)
		if err != nil {
			return err
		}
		return s.sessions.Store().Delete(ctx, sessionID)
	})
	if err != nil {
		s.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// withEngine runs fn on an engine restored from the stored snapshot, then
// persists the resulting state, all under the session lock.
func (s *Server) withEngine(ctx context.Context, sessionID string, fn func(context.Context, *sequent.Engine) error) error {
	return s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		snap, err := s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}
		eng, err := s.buildEngine(ctx, snap)
		if err != nil {
			return err
		}
		if err := fn(ctx, eng); err != nil {
			return err
		}
		return s.sessions.Store().Save(ctx, sessionID, eng.Snapshot())
	})
}

func (s *Server) buildEngine(ctx context.Context, snap *domain.Snapshot) (*sequent.Engine, error) {
	eng, err := sequent.New(ctx, s.manifest, s.engineOptions()...)
	if err != nil {
		return nil, err
	}
	if err := eng.Restore(snap); err != nil {
		return nil, err
	}
	return eng, nil
}

func (s *Server) engineOptions() []sequent.Option {
	opts := []sequent.Option{sequent.WithLogger(s.logger)}
	return append(opts, s.engOpts...)
}

func (s *Server) writeEngineError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Error("session operation failed", "session_id", sessionID, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
