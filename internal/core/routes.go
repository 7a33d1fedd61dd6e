package core

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultRequestTimeout applies when the config leaves RequestTimeout unset.
const defaultRequestTimeout = 29 * time.Second

// RouteRegistrar mounts a handler group onto the API router. The entry point
// populates Registrars before calling MountRoutes, which keeps core free of
// handler-package imports.
type RouteRegistrar func(chi.Router)

// MountRoutes registers the global middleware chain, the /api handler groups,
// and the operational endpoints.
func (s *Server) MountRoutes(registrars []RouteRegistrar, gatherer prometheus.Gatherer) {
	s.registerGlobalMiddleware()

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)
		for _, registrar := range registrars {
			registrar(r)
		}
	})

	s.router.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusNotFound, APIErrorResponse{Error: ErrorDetail{
			Code:    "not_found_route",
			Message: "route not found",
		}})
	})
}

// registerGlobalMiddleware applies middleware in order: recovery outermost,
// then timeout, correlation, security headers, logging, CORS, and metrics.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	raw := s.Config.Server.CORSAllowedOrigins
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
