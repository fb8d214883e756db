// Package imagegen turns prompts into images through interchangeable
// providers.
//
// provider.go defines the Provider contract shared by every backend:
//   - hosted_provider.go: OpenAI-compatible Images API (fast, high-fidelity)
//   - azure_provider.go: the same tiers served from Azure deployments
//   - fal_provider.go: third-party seeded provider
//   - throttle.go: request pacing wrapper
package imagegen

import (
	"context"
	"fmt"
	"image"
)

// Size is the requested output size in pixels.
type Size struct {
	Width  int
	Height int
}

// String returns "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Shape is the coarse aspect class of a Size.
type Shape int

const (
	ShapeSquare Shape = iota
	ShapePortrait
	ShapeLandscape
)

// Shape classifies the size by comparing width and height.
func (s Size) Shape() Shape {
	switch {
	case s.Height > s.Width:
		return ShapePortrait
	case s.Width > s.Height:
		return ShapeLandscape
	default:
		return ShapeSquare
	}
}

// Request is one image generation call.
type Request struct {
	Prompt string
	Size   Size
	// Seed is honored only by providers whose SupportsSeed is true.
	Seed *int64
}

// Provider generates one image per call.
//
// Implementations must be safe for concurrent use. Every error returned by
// Generate is a *ProviderError so callers can decide whether to retry.
type Provider interface {
	// Name identifies the provider in logs, metrics, and history.
	Name() string

	// SupportsSeed reports whether Request.Seed influences the output.
	SupportsSeed() bool

	// Generate renders req.Prompt at req.Size.
	Generate(ctx context.Context, req Request) (image.Image, error)
}
