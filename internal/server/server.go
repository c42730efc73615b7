package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
	"github.com/alanyoungcy/arbscan/internal/server/handler"
	"github.com/alanyoungcy/arbscan/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is the number of compute requests a client may make per
	// RateWindow. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Data     *handler.DataHandler
	Result   *handler.ResultHandler
	Signals  *handler.SignalHandler
	Analysis *handler.AnalysisHandler
	Exports  *handler.ExportHandler
	Metrics  http.Handler
}

// Server is the HTTP query API of the scanner.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and, when limiter is non-nil,
// rate limits the routes that run a computation.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	limited := func(h http.HandlerFunc) http.Handler {
		if limiter == nil || cfg.RateLimit <= 0 {
			return h
		}
		return middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}

	// Health and metrics (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}

	// Chart data and backtest results.
	mux.HandleFunc("GET /app/getdata", handlers.Data.GetData)
	mux.Handle("GET /app/getresult", limited(handlers.Result.GetResult))

	// Raw signals.
	mux.HandleFunc("GET /api/signals", handlers.Signals.ListSignals)
	mux.HandleFunc("GET /api/signals/stream", handlers.Signals.StreamSignals)

	// Operations.
	mux.Handle("POST /api/analysis/run", limited(handlers.Analysis.RunAnalysis))
	mux.Handle("POST /api/analysis/merge", limited(handlers.Analysis.MergeBuckets))
	mux.Handle("POST /api/dataset/reload", limited(handlers.Analysis.ReloadDataset))

	// Exports.
	mux.Handle("POST /api/exports", limited(handlers.Exports.CreateExport))
	mux.HandleFunc("GET /api/exports", handlers.Exports.ListExports)
	mux.HandleFunc("GET /api/exports/{name}", handlers.Exports.DownloadExport)

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
