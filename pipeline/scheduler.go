// scheduler.go implements the Scheduler organism: bounded fan-out of slide
// tasks to a Runner, with results collected in completion order.
//
// This organism composes:
//   - retry.go: the RetryingRunner each task is handed to
//   - golang.org/x/sync/semaphore: caps in-flight tasks
//   - golang.org/x/sync/errgroup: joins the task goroutines
package pipeline

import (
	"context"
	"fmt"

	"storyforge/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency is the number of slides generated at once.
const DefaultMaxConcurrency = 3

// Runner executes one task. RetryingRunner is the production Runner.
type Runner interface {
	Run(ctx context.Context, task Task) Result
}

var _ Runner = (*RetryingRunner)(nil)

// Scheduler runs tasks with at most maxConcurrency in flight.
type Scheduler struct {
	runner         Runner
	maxConcurrency int
	logger         *logging.Logger
}

// NewScheduler creates a scheduler. maxConcurrency <= 0 selects
// DefaultMaxConcurrency.
func NewScheduler(runner Runner, maxConcurrency int, logger *logging.Logger) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		runner:         runner,
		maxConcurrency: maxConcurrency,
		logger:         logger.Named("scheduler"),
	}
}

// MaxConcurrency returns the in-flight cap.
func (s *Scheduler) MaxConcurrency() int {
	return s.maxConcurrency
}

// Schedule runs every task and returns exactly one Result per task, in
// completion order.
//
// Cancelling ctx stops submission: tasks not yet started get a failed
// Result wrapping ErrBatchCancelled. Tasks already running finish their
// current provider call under a context that ignores the cancellation,
// but start no further retries.
func (s *Scheduler) Schedule(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(s.maxConcurrency))
	results := make(chan Result, len(tasks))
	runCtx := detach(ctx)

	var g errgroup.Group
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			skipped := tasks[i:]
			s.logger.Warn("batch cancelled; skipping unsubmitted slides",
				zap.Int("skipped", len(skipped)),
				zap.Error(err))
			for _, t := range skipped {
				results <- failed(t.SlideNumber, fmt.Errorf("%w: %w", ErrBatchCancelled, err))
			}
			break
		}

		g.Go(func() error {
			defer sem.Release(1)
			results <- s.runner.Run(runCtx, task)
			return nil
		})
	}

	// Task goroutines never return errors; failures travel in Result.
	_ = g.Wait()
	close(results)

	out := make([]Result, 0, len(tasks))
	for r := range results {
		out = append(out, r)
	}
	return out
}

type batchKey struct{}

// detach returns a context that survives cancellation of ctx while still
// carrying ctx, so retry loops can stop between attempts.
func detach(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), batchKey{}, ctx)
}

// batchContext returns the context attached by detach, or ctx itself.
func batchContext(ctx context.Context) context.Context {
	if batch, ok := ctx.Value(batchKey{}).(context.Context); ok {
		return batch
	}
	return ctx
}
