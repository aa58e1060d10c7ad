// Package api exposes the HTTP surface of the txt2sql service: query,
// session, schema introspection, health, and metrics endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/saudata/txt2sql/internal/catalog"
	"github.com/saudata/txt2sql/internal/pipeline"
	"github.com/saudata/txt2sql/internal/session"
)

// Pinger reports liveness of an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service wires the HTTP routes to the pipeline.
type Service struct {
	router    chi.Router
	pipeline  *pipeline.Orchestrator
	sessions  *session.Store
	catalogs  *catalog.Holder
	dbPing    Pinger
	llmPing   Pinger
	startTime time.Time
}

// NewService creates the service and registers its routes.
func NewService(
	orch *pipeline.Orchestrator,
	sessions *session.Store,
	catalogs *catalog.Holder,
	dbPing, llmPing Pinger,
) *Service {
	s := &Service{
		router:    chi.NewRouter(),
		pipeline:  orch,
		sessions:  sessions,
		catalogs:  catalogs,
		dbPing:    dbPing,
		llmPing:   llmPing,
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/sessions", s.handleCreateSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Get("/sessions/{id}/history", s.handleSessionHistory)
		r.Get("/schema", s.handleSchema)
	})
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// requestLogger logs one line per request in the service's event style.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}
