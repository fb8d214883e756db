// retry.go implements the RetryingRunner organism: one slide task run
// against one provider, retrying rate-limited failures with exponential
// backoff and jitter.
//
// This organism composes:
//   - imagegen.Provider: the backend being called
//   - imagegen.IsRetryable: decides which failures are retried
//   - logging.SlideFields: per-attempt log context
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"time"

	"storyforge/imagegen"
	"storyforge/logging"

	"go.uber.org/zap"
)

// RetryConfig contains configuration for the RetryingRunner.
type RetryConfig struct {
	// MaxAttempts is the maximum number of provider calls per task.
	// Defaults to 3.
	MaxAttempts int

	// BackoffBase is the exponential base in seconds. The sleep before
	// attempt k+1 is BackoffBase^(k-1) plus up to one second of jitter.
	// Defaults to 2.0.
	BackoffBase float64

	// ProviderTimeout bounds each provider call. Defaults to 180s.
	ProviderTimeout time.Duration

	// Sleep waits for d or until ctx is done. Defaults to a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error

	// Jitter returns a value in [0, 1). Defaults to math/rand/v2.
	Jitter func() float64
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		BackoffBase:     2.0,
		ProviderTimeout: 180 * time.Second,
		Sleep:           sleepContext,
		Jitter:          rand.Float64,
	}
}

// RetryingRunner runs tasks against a single provider. It holds no
// per-task state and is safe for concurrent use.
type RetryingRunner struct {
	provider imagegen.Provider
	config   RetryConfig
	logger   *logging.Logger
}

// NewRetryingRunner creates a runner with default configuration.
func NewRetryingRunner(provider imagegen.Provider, logger *logging.Logger) *RetryingRunner {
	return NewRetryingRunnerWithConfig(provider, DefaultRetryConfig(), logger)
}

// NewRetryingRunnerWithConfig creates a runner with custom configuration.
// Zero-valued fields take their defaults.
func NewRetryingRunnerWithConfig(provider imagegen.Provider, config RetryConfig, logger *logging.Logger) *RetryingRunner {
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = defaults.BackoffBase
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = defaults.ProviderTimeout
	}
	if config.Sleep == nil {
		config.Sleep = defaults.Sleep
	}
	if config.Jitter == nil {
		config.Jitter = defaults.Jitter
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RetryingRunner{
		provider: provider,
		config:   config,
		logger:   logger.Named("runner"),
	}
}

// Provider returns the provider tasks run against.
func (r *RetryingRunner) Provider() imagegen.Provider {
	return r.provider
}

// Run executes task and always returns a Result; failures are carried in
// Result.Err. Only rate-limited failures are retried. When ctx was detached
// by the Scheduler, backoff and further attempts stop once the batch
// context is done.
func (r *RetryingRunner) Run(ctx context.Context, task Task) Result {
	batch := batchContext(ctx)
	start := time.Now()
	res := Result{SlideNumber: task.SlideNumber}
	name := r.provider.Name()

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		res.Attempts = attempt
		img, err := r.call(ctx, task)
		if err == nil && img == nil {
			err = &imagegen.ProviderError{Provider: name, Class: imagegen.ClassEmpty, Err: imagegen.ErrNoImage}
		}
		if err == nil {
			res.Image, res.Err = img, nil
			res.Duration = time.Since(start)
			if attempt > 1 {
				r.logger.Info("slide generated after retry", logging.SlideFields(task.SlideNumber, name, attempt)...)
			}
			return res
		}
		res.Err = err

		class := imagegen.Classify(err)
		fields := append(logging.SlideFields(task.SlideNumber, name, attempt),
			zap.String(logging.FieldClass, class.String()),
			zap.Error(err))

		if !imagegen.IsRetryable(err) {
			r.logger.Warn("slide generation failed", fields...)
			break
		}
		if attempt == r.config.MaxAttempts {
			r.logger.Warn("slide generation rate limited; attempts exhausted", fields...)
			break
		}

		if err := batch.Err(); err != nil {
			r.logger.Warn("slide generation rate limited; batch ended, not retrying", fields...)
			res.Err = fmt.Errorf("pipeline: batch ended before retrying slide %d: %w", task.SlideNumber, errors.Join(res.Err, err))
			break
		}

		delay := r.Backoff(attempt)
		r.logger.Info("slide generation rate limited; backing off",
			append(fields, zap.Duration("delay", delay))...)
		if err := r.config.Sleep(batch, delay); err != nil {
			res.Err = fmt.Errorf("pipeline: backoff for slide %d interrupted: %w", task.SlideNumber, errors.Join(res.Err, err))
			break
		}
		res.RateLimitedRetries++
	}

	res.Duration = time.Since(start)
	return res
}

// Backoff returns the delay after failed attempt k (1-based):
// BackoffBase^(k-1) seconds plus jitter in [0, 1).
func (r *RetryingRunner) Backoff(attempt int) time.Duration {
	seconds := math.Pow(r.config.BackoffBase, float64(attempt-1)) + r.config.Jitter()
	return time.Duration(seconds * float64(time.Second))
}

func (r *RetryingRunner) call(ctx context.Context, task Task) (img image.Image, err error) {
	callCtx, cancel := context.WithTimeout(ctx, r.config.ProviderTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			img = nil
			err = &imagegen.ProviderError{
				Provider: r.provider.Name(),
				Class:    imagegen.ClassTransport,
				Err:      fmt.Errorf("provider panicked: %v", p),
			}
		}
	}()
	return r.provider.Generate(callCtx, task.Request())
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
