package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storyforge/core"
	"storyforge/logging"

	"go.uber.org/zap"
)

// Config contains configuration for the Manager.
type Config struct {
	// Timeout bounds the whole shutdown: waiting for batches plus hooks.
	// Defaults to 30s.
	Timeout time.Duration

	// HookGrace is the minimum time hooks get even when waiting for
	// batches used up Timeout. Defaults to 2s.
	HookGrace time.Duration

	// ForceExit is called on the second termination signal. Defaults to
	// os.Exit.
	ForceExit func(code int)

	// OnReload is called on SIGHUP. When nil SIGHUP is not intercepted.
	OnReload func()
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		HookGrace: 2 * time.Second,
		ForceExit: os.Exit,
	}
}

// Manager is the shutdown coordination organism. It composes:
//   - tracker.go: in-flight generation batches
//   - registry.go: staged cleanup hooks
//   - signal.go: graceful-then-forced signal escalation
//
// The first SIGINT or SIGTERM cancels Context, which also cancels any
// batch started from it; the second forces exit.
type Manager struct {
	logger  *logging.Logger
	config  Config
	tracker *BatchTracker
	hooks   *Hooks
	signals *escalation

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	finished bool
	sigCh    chan os.Signal
}

// NewManager creates a manager with default configuration.
func NewManager(logger *logging.Logger) *Manager {
	return NewManagerWithConfig(logger, DefaultConfig())
}

// NewManagerWithConfig creates a manager with custom configuration.
func NewManagerWithConfig(logger *logging.Logger, config Config) *Manager {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.HookGrace <= 0 {
		config.HookGrace = defaults.HookGrace
	}
	if config.ForceExit == nil {
		config.ForceExit = defaults.ForceExit
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:  logger.Named("shutdown"),
		config:  config,
		tracker: NewBatchTracker(),
		hooks:   NewHooks(),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.signals = newEscalation(2, func() {
		m.logger.Warn("second signal received; forcing exit")
		m.config.ForceExit(1)
	})
	return m
}

// Context is cancelled when shutdown is requested.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup hook.
func (m *Manager) Register(name string, stage Stage, fn core.ShutdownFunc) {
	m.hooks.Add(name, stage, fn)
}

// Hooks returns hook names in run order.
func (m *Manager) Hooks() []string {
	return m.hooks.Names()
}

// Start subscribes to SIGINT and SIGTERM, and to SIGHUP when OnReload is
// set. Calling Start again does nothing.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	sigs := []os.Signal{os.Interrupt, syscall.SIGTERM}
	if m.config.OnReload != nil {
		sigs = append(sigs, syscall.SIGHUP)
	}
	m.sigCh = make(chan os.Signal, 2)
	signal.Notify(m.sigCh, sigs...)
	go m.listen(m.sigCh)
}

func (m *Manager) listen(ch <-chan os.Signal) {
	for sig := range ch {
		m.handle(sig)
	}
}

func (m *Manager) handle(sig os.Signal) {
	if isReload(sig) {
		if m.config.OnReload != nil {
			m.logger.Info("reload requested", zap.String("signal", sig.String()))
			m.config.OnReload()
		}
		return
	}
	if m.signals.signal() {
		m.logger.Info("shutdown requested",
			zap.String("signal", sig.String()),
			zap.Int("in_flight_batches", m.tracker.Active()))
		m.cancel()
	}
}

// Trigger requests shutdown without a signal, for example when the HTTP
// server fails.
func (m *Manager) Trigger(reason string) {
	if m.ctx.Err() == nil {
		m.logger.Info("shutdown requested", zap.String("reason", reason))
	}
	m.cancel()
}

// BeginBatch registers a generation batch; see BatchTracker.Begin.
func (m *Manager) BeginBatch(label string) (func(), error) {
	return m.tracker.Begin(label)
}

// ActiveBatches returns the number of running batches.
func (m *Manager) ActiveBatches() int {
	return m.tracker.Active()
}

// ShuttingDown reports whether new batches are refused.
func (m *Manager) ShuttingDown() bool {
	return m.tracker.Closed()
}

// Shutdown refuses new batches, waits for running ones, then runs the
// hooks. Only the first call does anything.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return nil
	}
	m.finished = true
	if m.sigCh != nil {
		signal.Stop(m.sigCh)
	}
	m.mu.Unlock()

	m.cancel()
	start := time.Now()
	m.tracker.Close()
	m.logger.Info("shutting down",
		zap.Duration("timeout", m.config.Timeout),
		zap.Int("in_flight_batches", m.tracker.Active()),
		zap.Strings("hooks", m.hooks.Names()))

	waitCtx, cancelWait := context.WithTimeout(context.Background(), m.config.Timeout)
	if err := m.tracker.Wait(waitCtx); err != nil {
		m.logger.Warn("gave up waiting for batches", zap.Error(err))
	}
	cancelWait()

	remaining := max(m.config.Timeout-time.Since(start), m.config.HookGrace)
	hookCtx, cancelHooks := context.WithTimeout(context.Background(), remaining)
	defer cancelHooks()

	err := m.hooks.Run(hookCtx, m.logger)
	if err != nil {
		m.logger.Error("shutdown finished with errors", zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	m.logger.Info("shutdown complete", zap.Duration("took", time.Since(start)))
	return nil
}
