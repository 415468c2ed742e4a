// Package server provides HTTP server management and lifecycle handling for
// the dosing API. It includes server setup, middleware configuration, route
// management, and graceful shutdown with proper error handling and logging.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pediadose/pediadose-api/config"
	"github.com/pediadose/pediadose-api/dosing"
	"github.com/pediadose/pediadose-api/handlers"
	"github.com/pediadose/pediadose-api/interfaces"
	"github.com/pediadose/pediadose-api/logging"
	"github.com/pediadose/pediadose-api/metrics"
)

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	router    chi.Router
	config    *config.Config
	formulary interfaces.FormularySource
	doses     interfaces.DoseLedger
	checker   interfaces.HealthChecker
	calc      *dosing.Calculator
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, formulary interfaces.FormularySource,
	doses interfaces.DoseLedger, checker interfaces.HealthChecker) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:    router,
		config:    cfg,
		formulary: formulary,
		doses:     doses,
		checker:   checker,
		calc:      dosing.NewCalculator(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.Logger()))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(RateLimitHandler)
	s.router.Use(metrics.Metrics)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Post("/v1/dose/evaluate", handlers.EvaluateDose(s.calc, s.formulary, s.doses))
	s.router.Post("/v1/dose/events", handlers.RecordDose(s.doses))
	s.router.Get("/v1/dose/events", handlers.ListDoseEvents(s.doses))
	s.router.Get("/health", handlers.HealthCheck(s.checker))
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start starts the server
func (s *Server) Start() error {
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// Router exposes the configured router, mostly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logging.Error("Profiling server failed", "error", err)
		}
	}()
}
