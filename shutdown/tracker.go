// Package shutdown coordinates graceful shutdown of the serve command:
// it stops intake on the first signal, waits for running generation
// batches, then runs cleanup hooks in stage order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrShuttingDown is returned when work is offered after shutdown began.
var ErrShuttingDown = errors.New("shutdown: server is shutting down")

// BatchTracker counts in-flight generation batches so shutdown can wait
// for them. Each batch is registered under a label for logging.
type BatchTracker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	nextID uint64
	active map[uint64]string
}

// NewBatchTracker creates an open tracker.
func NewBatchTracker() *BatchTracker {
	return &BatchTracker{active: make(map[uint64]string)}
}

// Begin registers a batch. The returned done func must be called when the
// batch ends; calling it more than once is harmless. Begin fails with
// ErrShuttingDown once the tracker is closed.
func (t *BatchTracker) Begin(label string) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrShuttingDown
	}

	t.nextID++
	id := t.nextID
	t.active[id] = label
	t.wg.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.active, id)
			t.mu.Unlock()
			t.wg.Done()
		})
	}, nil
}

// Close stops new batches from starting. Running batches are unaffected.
func (t *BatchTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Closed reports whether Close has been called.
func (t *BatchTracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Active returns the number of running batches.
func (t *BatchTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Pending returns the labels of running batches, sorted.
func (t *BatchTracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	labels := make([]string, 0, len(t.active))
	for _, l := range t.active {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Wait blocks until every running batch is done or ctx expires. On expiry
// the error names the batches still running. Call Close first.
func (t *BatchTracker) Wait(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %d batch(es) still running %v: %w", t.Active(), t.Pending(), ctx.Err())
	}
}
