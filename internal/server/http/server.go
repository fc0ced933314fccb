// Package httpserver exposes the PubMed search tools over a JSON HTTP API.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search-service/internal/domain"
	"github.com/helixir/pubmed-search-service/internal/eutils"
	"github.com/helixir/pubmed-search-service/internal/observability"
)

// ToolBackend is the set of PubMed operations the server dispatches to.
type ToolBackend interface {
	Search(ctx context.Context, query string, page, limit int) (*domain.SearchResult, error)
	Similar(ctx context.Context, pmid int64) ([]domain.Paper, error)
	CitedReferences(ctx context.Context, pmid int64) ([]domain.Paper, error)
	CitingArticles(ctx context.Context, pmid int64) ([]domain.Paper, error)
	Abstract(ctx context.Context, pmid int64) (string, error)
	IsOpenAccess(ctx context.Context, pmid int64) (bool, error)
	FullText(ctx context.Context, pmid int64) (string, error)
	BatchSearch(ctx context.Context, queries []string, limit int) ([]domain.BatchSearchItem, error)
	SearchByAuthor(ctx context.Context, author string, limit int) (*domain.SearchResult, error)
	SearchByJournal(ctx context.Context, journal string, limit int) (*domain.SearchResult, error)
	AdvancedSearch(ctx context.Context, fields map[string]string, limit int) (*domain.SearchResult, error)
}

var _ ToolBackend = (*eutils.Client)(nil)

// Server is the HTTP tool API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	backend    ToolBackend
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server wired to the given tool backend.
func NewServer(cfg Config, backend ToolBackend, logger zerolog.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		backend: backend,
		logger:  logger.With().Str("component", "http-server").Logger(),
		metrics: metrics,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)

	// Health and metrics endpoints
	r.Get("/healthz", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/tools", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/search", s.handleSearch)
		r.Post("/similar", s.handleSimilar)
		r.Post("/cited-references", s.handleCitedReferences)
		r.Post("/citing-articles", s.handleCitingArticles)
		r.Post("/abstract", s.handleAbstract)
		r.Post("/is-open-access", s.handleIsOpenAccess)
		r.Post("/full-text", s.handleFullText)
		r.Post("/batch-search", s.handleBatchSearch)
		r.Post("/search-by-author", s.handleSearchByAuthor)
		r.Post("/search-by-journal", s.handleSearchByJournal)
		r.Post("/advanced-search", s.handleAdvancedSearch)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
