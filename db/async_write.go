package db

import (
	"context"
	"sync"
	"time"
)

// DefaultChannelCapacity is the default number of queued batch records.
const DefaultChannelCapacity = 100

// DefaultDrainTimeout bounds how long Stop waits for queued writes.
const DefaultDrainTimeout = 30 * time.Second

// WriteHandler persists one batch record.
type WriteHandler func(ctx context.Context, rec BatchRecord) error

// AsyncWriter moves history writes off the request path. Records are
// queued on a buffered channel and persisted by a single background
// goroutine, which matches SQLite's single-writer model.
//
// This molecule composes:
//   - buffered channel send/receive
//   - context cancellation for shutdown
//   - drain of queued records on stop
type AsyncWriter struct {
	records      chan BatchRecord
	handler      WriteHandler
	onError      func(BatchRecord, error)
	drainTimeout time.Duration

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	stopped bool
}

// AsyncWriterConfig holds configuration for the async writer.
type AsyncWriterConfig struct {
	// ChannelCapacity is the buffer size for pending records
	ChannelCapacity int
	// DrainTimeout bounds the wait in StopWithTimeout callers that use it
	DrainTimeout time.Duration
	// OnError is called when the handler fails; nil drops the error
	OnError func(BatchRecord, error)
}

// DefaultAsyncWriterConfig returns the default configuration.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		DrainTimeout:    DefaultDrainTimeout,
	}
}

// NewAsyncWriter creates a writer with default configuration.
func NewAsyncWriter(handler WriteHandler) *AsyncWriter {
	return NewAsyncWriterWithConfig(handler, DefaultAsyncWriterConfig())
}

// NewAsyncWriterWithConfig creates a writer with custom configuration.
func NewAsyncWriterWithConfig(handler WriteHandler, config AsyncWriterConfig) *AsyncWriter {
	if config.ChannelCapacity <= 0 {
		config.ChannelCapacity = DefaultChannelCapacity
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter{
		records:      make(chan BatchRecord, config.ChannelCapacity),
		handler:      handler,
		onError:      config.OnError,
		drainTimeout: config.DrainTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the background goroutine. Calling it again is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.stopped {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case rec := <-w.records:
			w.persist(rec)
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case rec := <-w.records:
			w.persist(rec)
		default:
			return
		}
	}
}

func (w *AsyncWriter) persist(rec BatchRecord) {
	// Writes queued before shutdown still land, so they never see the
	// writer's cancelled context.
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()
	if err := w.handler(ctx, rec); err != nil && w.onError != nil {
		w.onError(rec, err)
	}
}

// Enqueue queues rec without blocking. It returns false when the buffer is
// full or the writer is stopped; callers then write synchronously.
func (w *AsyncWriter) Enqueue(rec BatchRecord) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started || w.stopped {
		return false
	}
	select {
	case w.records <- rec:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued records.
func (w *AsyncWriter) Pending() int {
	return len(w.records)
}

// IsStarted reports whether the background goroutine is accepting records.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && !w.stopped
}

// Stop stops accepting records, persists what is queued and waits.
func (w *AsyncWriter) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}

// StopWithTimeout is Stop bounded by timeout. It reports whether the drain
// finished in time.
func (w *AsyncWriter) StopWithTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Shutdown adapts StopWithTimeout to the shutdown registry's signature.
func (w *AsyncWriter) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
