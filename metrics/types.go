// Package metrics provides in-memory generation metrics.
// This file contains atom-level type definitions with no behavior.
package metrics

import "time"

// BatchSample summarises one finished batch for the metrics store.
type BatchSample struct {
	// BatchID is the batch's unique identifier
	BatchID string `json:"batch_id"`

	// Provider is the selector the batch ran on
	Provider string `json:"provider"`

	// Topic is the plan topic
	Topic string `json:"topic"`

	// Slides is the number of slides in the plan
	Slides int `json:"slides"`

	// Succeeded is the number of slides that produced an image
	Succeeded int `json:"succeeded"`

	// Attempts is the total provider calls across all slides
	Attempts int `json:"attempts"`

	// RateLimitedRetries counts retries triggered by rate limiting
	RateLimitedRetries int `json:"rate_limited_retries"`

	// SlideLatency is the summed wall time of every slide task
	SlideLatency time.Duration `json:"slide_latency"`

	// Duration is the batch's total wall time
	Duration time.Duration `json:"duration"`

	// Finished is when the batch completed
	Finished time.Time `json:"finished"`
}

// Failed returns the number of slides without an image.
func (b BatchSample) Failed() int {
	return b.Slides - b.Succeeded
}

// ProviderMetrics represents aggregated counters for one provider.
type ProviderMetrics struct {
	// Batches is the number of batches run on this provider
	Batches int64 `json:"batches"`

	// SlidesSucceeded counts slides that produced an image
	SlidesSucceeded int64 `json:"slides_succeeded"`

	// SlidesFailed counts slides that did not
	SlidesFailed int64 `json:"slides_failed"`

	// Attempts is the total provider calls
	Attempts int64 `json:"attempts"`

	// RateLimitedRetries counts retries caused by rate limiting
	RateLimitedRetries int64 `json:"rate_limited_retries"`

	// SuccessRate is the percentage of slides that succeeded (0-100)
	SuccessRate float64 `json:"success_rate"`

	// AvgSlideLatency is the mean wall time per slide
	AvgSlideLatency time.Duration `json:"avg_slide_latency"`
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	// Version is the application version string
	Version string `json:"version"`

	// Uptime is the duration since the store was created
	Uptime time.Duration `json:"uptime"`

	// TotalBatches is the number of batches across providers
	TotalBatches int64 `json:"total_batches"`

	// Providers holds per-provider counters keyed by selector
	Providers map[string]ProviderMetrics `json:"providers"`

	// Recent holds the newest batch samples, newest first
	Recent []BatchSample `json:"recent"`
}
