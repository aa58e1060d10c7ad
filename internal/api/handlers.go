package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/saudata/txt2sql/internal/session"
)

// queryRequest is the body of POST /api/query.
type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := s.pipeline.Process(r.Context(), req.Question, req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Service) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	id := s.sessions.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id})
}

func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Clear(id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := s.sessions.History(id, 0)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Service) handleSchema(w http.ResponseWriter, _ *http.Request) {
	cat := s.catalogs.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": cat.Tables(),
	})
}

// healthStatus is the body of GET /health.
type healthStatus struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Sessions int               `json:"sessions"`
	Tables   int               `json:"tables"`
	Checks   map[string]string `json:"checks"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var dbErr, llmErr error
	var g errgroup.Group
	g.Go(func() error { dbErr = s.dbPing.Ping(ctx); return dbErr })
	g.Go(func() error { llmErr = s.llmPing.Ping(ctx); return llmErr })
	degraded := g.Wait() != nil

	checks := map[string]string{"database": "ok", "llm": "ok"}
	if dbErr != nil {
		checks["database"] = dbErr.Error()
	}
	if llmErr != nil {
		checks["llm"] = llmErr.Error()
	}

	status := http.StatusOK
	body := healthStatus{
		Status:   "healthy",
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		Sessions: s.sessions.Len(),
		Tables:   s.catalogs.Current().Len(),
		Checks:   checks,
	}
	if degraded {
		body.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
