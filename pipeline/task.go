// Package pipeline turns an approved story plan into ordered slide images.
// This file contains the task and result types shared by the runner,
// scheduler and assembler.
package pipeline

import (
	"errors"
	"image"
	"time"

	"storyforge/imagegen"
)

// Sentinel errors.
var (
	// ErrBatchCancelled marks tasks never submitted because the batch
	// context was cancelled first.
	ErrBatchCancelled = errors.New("pipeline: batch cancelled before task was submitted")

	// ErrNoResult marks a slide slot that no task reported on.
	ErrNoResult = errors.New("pipeline: no result for slide")
)

// Task is one slide's generation work.
type Task struct {
	SlideNumber int
	Prompt      string
	Size        imagegen.Size
	// Seed is shared by every task in a batch; nil for unseeded providers.
	Seed *int64
}

// Request converts the task into a provider request.
func (t Task) Request() imagegen.Request {
	return imagegen.Request{Prompt: t.Prompt, Size: t.Size, Seed: t.Seed}
}

// Result is the outcome of one Task. Exactly one of Image and Err is set.
type Result struct {
	SlideNumber int
	Image       image.Image
	Err         error

	// Attempts is the number of provider calls made
	Attempts int

	// RateLimitedRetries counts attempts that followed a rate-limit failure
	RateLimitedRetries int

	// Duration is the task's wall time including backoff sleeps
	Duration time.Duration
}

// OK reports whether the result carries an image.
func (r Result) OK() bool {
	return r.Err == nil && r.Image != nil
}

// FailureClass returns the classification of a failed result.
func (r Result) FailureClass() imagegen.FailureClass {
	if r.Err == nil && r.Image == nil {
		return imagegen.ClassEmpty
	}
	return imagegen.Classify(r.Err)
}

func failed(slide int, err error) Result {
	return Result{SlideNumber: slide, Err: err}
}
