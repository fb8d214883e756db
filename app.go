package main

import (
	"context"
	"io"
	"os"
	"time"

	"storyforge/core"
	"storyforge/db"
	"storyforge/imagegen"
	"storyforge/logging"
	"storyforge/metrics"
	"storyforge/pipeline"
	"storyforge/postprocess"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is reported by /metrics and --version.
var version = "0.1.0"

// env holds everything a command reaches outside the process. Tests swap
// the constructors to avoid real providers and terminals.
type env struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig  func() (*core.Config, error)
	newLogger   func(cfg *core.Config) (*logging.Logger, error)
	newRegistry func(cfg *core.Config, logger *logging.Logger) (*imagegen.Registry, error)

	// dotenvFiles are re-read on reload. Empty means ".env".
	dotenvFiles []string

	// serveReady is called once the API is listening. Optional.
	serveReady func(addr string, stop func(reason string))
}

func defaultEnv() env {
	return env{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		loadConfig:  core.LoadConfig,
		newLogger:   newLogger,
		newRegistry: imagegen.NewRegistry,
	}
}

func newLogger(cfg *core.Config) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.LogLevel, zapcore.InfoLevel)
	if cfg.DevMode {
		level = zapcore.DebugLevel
	}
	return logging.NewLoggerWithLevel(cfg.DevMode, cfg.LogFile, level)
}

// app is the wired object graph shared by every command.
type app struct {
	cfg       *core.Config
	logger    *logging.Logger
	generator *pipeline.Generator
	metrics   *metrics.Store

	// Set only when history is enabled and the database opened.
	database *db.Database
	repo     *db.Repository
	writer   *db.AsyncWriter
}

type appOptions struct {
	// asyncHistory queues history writes on a background writer instead of
	// inserting inline.
	asyncHistory bool
}

// openApp loads configuration and wires the generator. A database that
// fails to open disables history with a warning.
func openApp(e env, opts appOptions) (*app, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := e.newLogger(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := e.newRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	brands, err := postprocess.LoadBrands(cfg.BrandDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewStore(metrics.StoreConfig{RecentCapacity: 50, Version: version}, time.Now()),
	}
	if cfg.HistoryEnabled {
		a.openHistory(opts.asyncHistory)
	}

	deps := pipeline.Dependencies{
		Registry: registry,
		Brands:   brands,
		Metrics:  a.metrics,
		Logger:   logger,
	}
	if a.repo != nil {
		deps.History = a.repo
	}

	retry := pipeline.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.BackoffBase = cfg.RetryBaseDelay
	retry.ProviderTimeout = cfg.ProviderTimeout

	a.generator = pipeline.NewGeneratorWithConfig(deps, pipeline.GeneratorConfig{
		OutputDir:      cfg.OutputDir,
		MaxConcurrency: cfg.MaxParallelWorkers,
		TextOverlay:    cfg.TextOverlayEnabled,
		Retry:          retry,
	})

	logger.Info("configuration loaded",
		zap.Strings("providers", selectorNames(registry.Configured())),
		zap.String("output_dir", cfg.OutputDir),
		zap.Int("brands", len(brands.Brands())),
		zap.Bool("history", a.repo != nil),
		zap.Int("max_parallel_workers", cfg.MaxParallelWorkers))
	return a, nil
}

func (a *app) openHistory(async bool) {
	database, err := db.Open(a.cfg.DatabasePath)
	if err != nil {
		a.logger.Warn("history disabled: failed to open database",
			zap.String("path", a.cfg.DatabasePath), zap.Error(err))
		return
	}
	a.database = database
	a.repo = db.NewRepository(database, nil)
	if !async {
		return
	}

	log := a.logger.Named("history")
	a.writer = db.NewAsyncWriterWithConfig(a.repo.WriteHandler(), db.AsyncWriterConfig{
		OnError: func(rec db.BatchRecord, err error) {
			log.Error("failed to persist batch", zap.String(logging.FieldBatchID, rec.ID), zap.Error(err))
		},
	})
	a.writer.Start()
	a.repo = db.NewRepository(database, a.writer)
}

// close drains history and closes the database. serve uses shutdown hooks
// instead.
func (a *app) close() {
	if a.writer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.writer.Shutdown(ctx); err != nil {
			a.logger.Warn("history writer did not drain", zap.Error(err))
		}
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// reloadRegistry re-reads .env over the environment and rebuilds providers
// from the fresh configuration. Running batches keep the provider they
// resolved.
func (a *app) reloadRegistry(e env) {
	if err := loadDotEnv(e.dotenvFiles, true); err != nil {
		a.logger.Warn("reload: failed to read .env; using current environment", zap.Error(err))
	}
	cfg, err := e.loadConfig()
	if err != nil {
		a.logger.Error("reload failed: invalid configuration", zap.Error(err))
		return
	}
	registry, err := e.newRegistry(cfg, a.logger)
	if err != nil {
		a.logger.Error("reload failed: providers", zap.Error(err))
		return
	}
	a.generator.SetRegistry(registry)
	a.logger.Info("providers reloaded", zap.Strings("providers", selectorNames(registry.Configured())))
}

func selectorNames(sels []imagegen.Selector) []string {
	out := make([]string, len(sels))
	for i, s := range sels {
		out[i] = string(s)
	}
	return out
}
