// Package metrics provides the Recorder interface for generation metrics.
// This is a molecule that composes the atom-level types from types.go.
package metrics

// Recorder receives finished batches. The generator depends on this
// interface so a nil-safe no-op can stand in when metrics are off.
type Recorder interface {
	// RecordBatch folds a finished batch into the metrics.
	RecordBatch(b BatchSample)
}

// Nop is a Recorder that drops every sample.
type Nop struct{}

// RecordBatch implements Recorder.
func (Nop) RecordBatch(BatchSample) {}
