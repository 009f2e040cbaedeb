// Package api exposes backtest submission and run history over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	handler "ballast/internal/api/handler/api"
	"ballast/internal/api/job"
	"ballast/internal/api/middleware"
	"ballast/internal/metrics"
	"ballast/internal/storage/runs"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Config holds server configuration.
type Config struct {
	Host    string
	Port    int
	APIKey  string        // empty disables auth
	JobTTL  time.Duration // retention of finished jobs, default 1h
	MaxJobs int           // job store capacity, default 100
}

// Dependencies are the application components the server serves.
type Dependencies struct {
	Runner  handler.Runner
	Runs    runs.Store
	Metrics *metrics.Registry // nil disables /metrics and instrumentation
}

// Server is the HTTP front end.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	jobs       *job.Store
	handler    http.Handler
}

// NewServer wires routes, auth and instrumentation. /healthz and
// /metrics stay outside auth; everything under /api/v1 requires the
// configured key.
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil {
		return nil, fmt.Errorf("api: runner dependency is required")
	}
	if deps.Runs == nil {
		return nil, fmt.Errorf("api: run store dependency is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ttl := cfg.JobTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 100
	}
	jobs := job.NewStore(maxJobs, ttl)

	backtests := handler.NewBacktestHandler(jobs, deps.Runner, deps.Metrics, logger)
	runHistory := handler.NewRunsHandler(deps.Runs)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	auth := middleware.APIKeyAuth(cfg.APIKey)
	mux.Handle("POST /api/v1/backtests", auth(http.HandlerFunc(backtests.Create)))
	mux.Handle("GET /api/v1/backtests/{id}", auth(http.HandlerFunc(backtests.GetStatus)))
	mux.Handle("GET /api/v1/runs", auth(http.HandlerFunc(runHistory.List)))
	mux.Handle("GET /api/v1/runs/{id}", auth(http.HandlerFunc(runHistory.Get)))

	var root http.Handler = mux
	root = metrics.LoggingMiddleware(logger)(root)
	if deps.Metrics != nil {
		root = metrics.HTTPMiddleware(deps.Metrics)(root)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:  logger,
		jobs:    jobs,
		handler: root,
	}, nil
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server. In-flight backtest jobs
// keep running until their own timeout; only the listener stops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
