// Package server exposes the bypass decision and the settings over HTTP.
package server

import (
	"net/http"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/logger"
	"github.com/abczzz13/unprotect/internal/session"
	"github.com/abczzz13/unprotect/internal/settings"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds the server's dependencies.
type Config struct {
	Policy   *unprotect.Policy
	Settings *settings.Service
	// Sessions may be nil, in which case every visitor is logged out.
	Sessions *session.Manager
	Logger   *zap.Logger
	// AdminToken enables the settings API when non-empty.
	AdminToken string
	// Gatherer serves /metrics. Defaults to prom.DefaultGatherer.
	Gatherer prom.Gatherer
}

// Server holds the HTTP handlers.
type Server struct {
	policy   *unprotect.Policy
	settings *settings.Service
	sessions *session.Manager
	logger   *zap.SugaredLogger
}

// New creates a server from cfg.
func New(cfg Config) *Server {
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		policy:   cfg.Policy,
		settings: cfg.Settings,
		sessions: cfg.Sessions,
		logger:   l.Named("server").Sugar(),
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg Config) http.Handler {
	s := New(cfg)

	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prom.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.NewRequestLogger(l).WithLogging)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/client-address", s.clientAddress)
		r.With(s.Gate).Get("/access", s.access)

		if cfg.AdminToken == "" {
			return
		}
		r.Route("/settings", func(r chi.Router) {
			r.Use(AdminAuth(cfg.AdminToken))
			r.Get("/", s.getSettings)
			r.Put("/", s.putSettings)
			r.Post("/validate", s.validateSettings)
		})
	})

	return r
}
