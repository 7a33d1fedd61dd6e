// Package core provides the API chassis for the ShellCast service: a chi
// router with cross-cutting middleware for recovery, request correlation,
// logging, CORS, and metrics, plus the shared JSON response envelope.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shellcast/internal/config"
	"shellcast/internal/observability"
)

// Server encapsulates the router and the cross-cutting dependencies injected
// into middleware, so tests can assemble a chassis without real config.
type Server struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer constructs the chassis and fails fast on missing dependencies.
// The caller mounts routes after construction.
func NewServer(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Server{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		router:  chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server-held resources. The HTTP listener itself is owned
// by the entry point; this closes anything the chassis was handed that
// supports closing.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown complete")
	return nil
}
