package shutdown

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"storyforge/core"
	"storyforge/logging"

	"go.uber.org/zap"
)

// Stage orders cleanup hooks. Lower stages run first; hooks within a stage
// run in registration order.
type Stage int

const (
	// StageServer stops accepting HTTP requests.
	StageServer Stage = 10
	// StageWorkers drains background work such as the history writer and
	// the prune scheduler.
	StageWorkers Stage = 20
	// StageStorage closes the database.
	StageStorage Stage = 30
	// StageLogger flushes logs. It runs last so earlier hooks can log.
	StageLogger Stage = 90
)

type hook struct {
	name  string
	stage Stage
	fn    core.ShutdownFunc
}

// Hooks is an ordered set of cleanup functions. Each hook runs at most
// once; hooks added after Run are ignored.
type Hooks struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

// NewHooks creates an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{}
}

// Add registers fn under name at stage. A nil fn is ignored.
func (h *Hooks) Add(name string, stage Stage, fn core.ShutdownFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ran {
		return
	}
	h.hooks = append(h.hooks, hook{name: name, stage: stage, fn: fn})
}

// ordered returns a stage-sorted copy. Callers hold mu.
func (h *Hooks) ordered() []hook {
	out := slices.Clone(h.hooks)
	slices.SortStableFunc(out, func(a, b hook) int { return int(a.stage) - int(b.stage) })
	return out
}

// Names returns hook names in run order.
func (h *Hooks) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ordered := h.ordered()
	names := make([]string, len(ordered))
	for i, hk := range ordered {
		names[i] = hk.name
	}
	return names
}

// Len returns the number of registered hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Run calls every hook in order, even after failures, and returns the
// joined errors. A second call does nothing.
func (h *Hooks) Run(ctx context.Context, logger *logging.Logger) error {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return nil
	}
	h.ran = true
	ordered := h.ordered()
	h.mu.Unlock()

	if logger == nil {
		logger = logging.NewNop()
	}

	var errs []error
	for _, hk := range ordered {
		start := time.Now()
		err := runHook(ctx, hk)
		if err != nil {
			logger.Error("shutdown hook failed",
				zap.String("hook", hk.name),
				zap.Duration("took", time.Since(start)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown: %s: %w", hk.name, err))
			continue
		}
		logger.Debug("shutdown hook done",
			zap.String("hook", hk.name),
			zap.Duration("took", time.Since(start)))
	}
	return errors.Join(errs...)
}

// runHook turns a panicking hook into an error so later hooks still run.
func runHook(ctx context.Context, hk hook) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return hk.fn(ctx)
}
