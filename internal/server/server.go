// Package server exposes the snapshot, poller and provider over HTTP for
// operators, and accepts change webhooks from the Flare service.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Config holds HTTP server configuration
type Config struct {
	Addr          string
	WebhookSecret string
	DefaultScope  string
	Section       string
}

// Server is the admin HTTP server
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     zerolog.Logger
}

// New builds the router and the underlying http.Server
func New(cfg Config, store SnapshotStore, refresher Refresher, evaluator Evaluator, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "server").Logger()
	metrics := NewMetrics()

	r := chi.NewRouter()
	r.Use(metrics.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(NewMiddleware(cfg.DefaultScope).Handler)

	NewAdminHandler(store, refresher, evaluator, cfg.Section, logger).Routes(r)
	r.Method(http.MethodPost, "/webhook", NewWebhookHandler(refresher, cfg.WebhookSecret, logger))
	r.Handle("/metrics", metrics.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 35 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		handler: r,
		logger:  logger,
	}
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("admin server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
