// Package metrics provides the Store organism for in-memory metrics.
// This file contains the Store which implements the Recorder interface.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Store keeps per-provider counters and a ring of recent batch samples.
// It is safe for concurrent use.
//
// This is an organism-level component that composes:
//   - a fixed-size ring buffer of BatchSample
//   - per-provider aggregates
//   - sync.RWMutex for thread-safety
//
// Usage:
//
//	store := NewStore(DefaultStoreConfig(), time.Now())
//	store.RecordBatch(sample)
//	snap := store.Snapshot(10)
type Store struct {
	mu sync.RWMutex

	// Batch history ring
	recent     []BatchSample
	recentCap  int
	recentHead int
	recentSize int

	totalBatches int64
	byProvider   map[string]*providerStats

	startTime time.Time
	version   string
}

// providerStats holds per-provider aggregation data.
type providerStats struct {
	batches      int64
	succeeded    int64
	failed       int64
	attempts     int64
	rateLimited  int64
	slideLatency time.Duration
}

// StoreConfig configures the Store.
type StoreConfig struct {
	// RecentCapacity is how many batch samples are retained
	RecentCapacity int
	// Version is the application version string
	Version string
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		RecentCapacity: 50,
		Version:        "0.0.0",
	}
}

// NewStore creates a Store. startTime anchors Uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.RecentCapacity
	if capacity < 1 {
		capacity = 50
	}
	return &Store{
		recent:     make([]BatchSample, capacity),
		recentCap:  capacity,
		byProvider: make(map[string]*providerStats),
		startTime:  startTime,
		version:    config.Version,
	}
}

// RecordBatch folds one finished batch into the counters.
func (s *Store) RecordBatch(b BatchSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent[s.recentHead] = b
	s.recentHead = (s.recentHead + 1) % s.recentCap
	if s.recentSize < s.recentCap {
		s.recentSize++
	}

	s.totalBatches++

	stats, ok := s.byProvider[b.Provider]
	if !ok {
		stats = &providerStats{}
		s.byProvider[b.Provider] = stats
	}
	stats.batches++
	stats.succeeded += int64(b.Succeeded)
	stats.failed += int64(b.Failed())
	stats.attempts += int64(b.Attempts)
	stats.rateLimited += int64(b.RateLimitedRetries)
	stats.slideLatency += b.SlideLatency
}

// Provider returns the counters for one provider.
func (s *Store) Provider(name string) (ProviderMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.byProvider[name]
	if !ok {
		return ProviderMetrics{}, false
	}
	return stats.metrics(), true
}

// Recent returns up to limit batch samples, newest first.
func (s *Store) Recent(limit int) []BatchSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

// Snapshot copies every counter plus up to recentLimit samples.
func (s *Store) Snapshot(recentLimit int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	providers := make(map[string]ProviderMetrics, len(s.byProvider))
	for name, stats := range s.byProvider {
		providers[name] = stats.metrics()
	}
	return Snapshot{
		Version:      s.version,
		Uptime:       time.Since(s.startTime),
		TotalBatches: s.totalBatches,
		Providers:    providers,
		Recent:       s.recentLocked(recentLimit),
	}
}

// ProviderNames returns the providers seen so far, sorted.
func (s *Store) ProviderNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.byProvider))
	for name := range s.byProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) recentLocked(limit int) []BatchSample {
	if limit <= 0 || s.recentSize == 0 {
		return []BatchSample{}
	}
	if limit > s.recentSize {
		limit = s.recentSize
	}

	out := make([]BatchSample, limit)
	for i := 0; i < limit; i++ {
		idx := (s.recentHead - 1 - i + s.recentCap) % s.recentCap
		out[i] = s.recent[idx]
	}
	return out
}

func (p *providerStats) metrics() ProviderMetrics {
	m := ProviderMetrics{
		Batches:            p.batches,
		SlidesSucceeded:    p.succeeded,
		SlidesFailed:       p.failed,
		Attempts:           p.attempts,
		RateLimitedRetries: p.rateLimited,
	}
	if slides := p.succeeded + p.failed; slides > 0 {
		m.SuccessRate = float64(p.succeeded) / float64(slides) * 100
		m.AvgSlideLatency = p.slideLatency / time.Duration(slides)
	}
	return m
}

// Verify Store implements Recorder.
var _ Recorder = (*Store)(nil)
