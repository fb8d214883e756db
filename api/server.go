// Package api exposes batch generation, history, and metrics over HTTP.
// This file contains the Server organism that wires the routes together.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"storyforge/db"
	"storyforge/imagegen"
	"storyforge/logging"
	"storyforge/metrics"
	"storyforge/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Generator runs plan batches. *pipeline.Generator implements it.
type Generator interface {
	GenerateFromPlan(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.BatchReport, error)
	Registry() *imagegen.Registry
}

// HistoryReader reads stored batches. *db.Repository implements it.
type HistoryReader interface {
	QueryRecentBatches(ctx context.Context, limit int) ([]db.BatchRecord, error)
	QueryBatch(ctx context.Context, id string) (*db.BatchRecord, error)
}

// MetricsSource provides metric snapshots. *metrics.Store implements it.
type MetricsSource interface {
	Snapshot(recentLimit int) metrics.Snapshot
}

// BatchGate admits batches while the process is running.
// *shutdown.Manager implements it.
type BatchGate interface {
	BeginBatch(label string) (func(), error)
	ActiveBatches() int
}

var (
	_ Generator     = (*pipeline.Generator)(nil)
	_ HistoryReader = (*db.Repository)(nil)
	_ MetricsSource = (*metrics.Store)(nil)
)

// ServerConfig configures the Server.
type ServerConfig struct {
	// Addr to listen on (default: ":8000")
	Addr string

	// OutputDir is the root that batch folders are created under and that
	// /generated/ serves from (default: "./generated_images")
	OutputDir string

	// ReadTimeout for HTTP requests (default: 30s)
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses. A batch can take minutes, so the
	// default is 15m.
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s)
	IdleTimeout time.Duration

	// DefaultLimit and MaxLimit bound list endpoints (default: 20, 100)
	DefaultLimit int
	MaxLimit     int

	// LogSkipPaths are paths the request logger ignores
	LogSkipPaths []string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8000",
		OutputDir:    "./generated_images",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
		DefaultLimit: 20,
		MaxLimit:     100,
		LogSkipPaths: []string{"/health"},
	}
}

// Dependencies are the collaborators a Server routes to. Generator is
// required; History, Metrics and Gate may be nil, in which case their
// routes answer 503 or skip the check.
type Dependencies struct {
	Generator Generator
	History   HistoryReader
	Metrics   MetricsSource
	Gate      BatchGate
	Logger    *logging.Logger

	// BaseContext is the parent of every request context. Cancelling it
	// cancels running batches. Defaults to context.Background().
	BaseContext context.Context
}

// Server is the HTTP organism. It composes:
//   - chi router with RequestID, RealIP and Recoverer middleware
//   - LoggingMiddleware for zap request logs
//   - generate.go: POST /generate_from_plan
//   - history.go: /history, /metrics and /health
//   - files.go: /generated/ static files
type Server struct {
	httpServer *http.Server
	router     chi.Router
	config     ServerConfig
	deps       Dependencies
	logger     *logging.Logger
	started    time.Time
	now        func() time.Time
}

// NewServer creates a Server. It does not start listening.
func NewServer(config ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Generator == nil {
		return nil, errors.New("api: generator is required")
	}
	defaults := DefaultServerConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.OutputDir == "" {
		config.OutputDir = defaults.OutputDir
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.DefaultLimit < 1 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = max(defaults.MaxLimit, config.DefaultLimit)
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}

	s := &Server{
		config:  config,
		deps:    deps,
		logger:  deps.Logger.Named("api"),
		started: time.Now(),
		now:     time.Now,
	}
	s.router = s.routes()

	base := deps.BaseContext
	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return base },
		ErrorLog:     zap.NewStdLog(s.logger.Zap()),
	}

	s.logger.Info("api server created",
		zap.String("addr", config.Addr),
		zap.String("output_dir", config.OutputDir),
		zap.Bool("history_enabled", deps.History != nil))
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(NewLoggingMiddleware(s.logger, s.config.LogSkipPaths).Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Post("/generate_from_plan", s.handleGenerate)

	r.Route("/history", func(r chi.Router) {
		r.Get("/", s.handleHistory)
		r.Get("/{batchID}", s.handleBatch)
	})

	r.Handle("/generated/*", s.generatedFiles())
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer returns the underlying server for shutdown hooks.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe blocks until the server is shut down. A clean shutdown
// returns nil.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("api: failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is shut down.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("api server listening", zap.String("addr", ln.Addr().String()))
	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: http server error: %w", err)
	}
	return nil
}
