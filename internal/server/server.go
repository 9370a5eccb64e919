// Package server provides the HTTP API for Benkyo.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/benkyo/internal/config"
	"github.com/hyperjump/benkyo/internal/ingest"
	"github.com/hyperjump/benkyo/internal/keyword"
	"github.com/hyperjump/benkyo/internal/models"
	"github.com/hyperjump/benkyo/internal/storage"
	"go.uber.org/zap"
)

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, paths []string, progress ingest.ProgressFunc) ingest.Outcome
}

// Answerer answers a question against the ingested notes.
type Answerer interface {
	Answer(ctx context.Context, question string, history []models.Turn) string
}

// SourceManager lists and deletes ingested sources.
type SourceManager interface {
	ListSources(ctx context.Context) ([]string, error)
	DeleteSource(ctx context.Context, source string) (string, error)
}

// Searcher runs keyword search over ingested chunks.
type Searcher interface {
	Search(query string, limit int, fuzzy bool) ([]keyword.Match, error)
}

// Server is the HTTP server for the Benkyo API.
type Server struct {
	ingestor Ingestor
	answerer Answerer
	sources  SourceManager
	searcher Searcher // nil disables /api/v1/search
	catalog  storage.Catalog
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ingestor Ingestor,
	answerer Answerer,
	sources SourceManager,
	searcher Searcher,
	catalog storage.Catalog,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingestor: ingestor,
		answerer: answerer,
		sources:  sources,
		searcher: searcher,
		catalog:  catalog,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the API routes. Ingestion can stall for minutes on quota
// backoff, so the request timeout is generous.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/ingest", s.handleIngest)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/sources", s.handleListSources)
	r.Delete("/api/v1/sources/{name}", s.handleDeleteSource)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
