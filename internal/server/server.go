// Package server exposes the dbdeck HTTP API: service discovery, query
// execution with pagination, history and suggestions.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/entl/dbdeck/internal/history"
	"github.com/entl/dbdeck/internal/lando"
	"github.com/entl/dbdeck/internal/registry"
	"github.com/entl/dbdeck/internal/suggest"
)

// Server holds the wired application services behind the HTTP handlers.
type Server struct {
	registry *registry.Registry
	history  *history.Service
	suggest  *suggest.Service
	runner   lando.Runner

	defaultPageSize int
	version         string
	build           string
	logger          *slog.Logger
}

// New wires a Server. defaultPageSize applies when a query request omits
// page_size.
func New(reg *registry.Registry, hist *history.Service, sug *suggest.Service, runner lando.Runner, defaultPageSize int, version, build string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry:        reg,
		history:         hist,
		suggest:         sug,
		runner:          runner,
		defaultPageSize: defaultPageSize,
		version:         version,
		build:           build,
		logger:          logger,
	}
}

// Routes builds the chi router for the API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/version", s.handleVersion)

		r.Get("/services", s.handleListServices)
		r.Post("/services/refresh", s.handleRefreshServices)

		r.Post("/query", s.handleQuery)
		r.Post("/export/{service}", s.handleExport)
		r.Put("/services/{service}/credentials", s.handleUpdateCredentials)

		r.Get("/history", s.handleHistory)
		r.Delete("/history/{id}", s.handleDeleteHistory)

		r.Get("/suggest", s.handleSuggest)
	})

	return r
}

// handlePing echoes a liveness probe.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("message")
	if msg == "" {
		msg = "pong"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// handleVersion returns the compiled-in version and build strings,
// typically injected at link time via -ldflags.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": s.version,
		"build":   s.build,
	})
}
