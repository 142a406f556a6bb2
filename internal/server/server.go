// Package server is the session adapter: it maps one live websocket
// connection to one assessment engine and translates between wire
// messages and engine calls.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/mindscale/internal/catalog"
	"github.com/abhisek/mindscale/internal/config"
	"github.com/abhisek/mindscale/internal/llm"
	"github.com/abhisek/mindscale/internal/store"
)

// Server hosts interview sessions over websockets.
type Server struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	provider llm.Provider
	progress store.ProgressRepo
	results  store.ResultRepo
	logger   *slog.Logger
}

// New creates a Server. Each accepted connection gets its own engine
// over the shared catalog, provider and stores.
func New(cfg *config.Config, cat *catalog.Catalog, provider llm.Provider, progress store.ProgressRepo, results store.ResultRepo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		catalog:  cat,
		provider: provider,
		progress: progress,
		results:  results,
		logger:   logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleSession)

	return r
}
