// Package postprocess applies optional finishing stages to generated
// slides: a text overlay and a brand watermark.
//
// chain.go implements the Chain organism. It composes:
//   - overlay.go: title and key-fact rendering
//   - watermark.go: logo or text branding
//   - brand.go: brand definitions and the decoded logo cache
package postprocess

import (
	"image"

	"storyforge/logging"
	"storyforge/story"

	"go.uber.org/zap"
)

// Stage is one post-processing step. Apply must not modify src; stages
// copy into a fresh RGBA before drawing.
type Stage interface {
	Name() string
	Apply(src image.Image, slide story.Slide) (image.Image, error)
}

// Chain runs stages in order. A failing stage is logged and skipped, so
// the next stage sees the previous stage's output.
type Chain struct {
	stages []Stage
	logger *logging.Logger
}

// NewChain builds a chain over stages. Nil stages are dropped.
func NewChain(logger *logging.Logger, stages ...Stage) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Chain{logger: logger.Named("postprocess")}
	for _, s := range stages {
		if s != nil {
			c.stages = append(c.stages, s)
		}
	}
	return c
}

// ChainOptions selects which stages Build includes.
type ChainOptions struct {
	// TextOverlay enables the title and key-fact overlay
	TextOverlay bool
	// Brand enables the watermark when non-nil
	Brand *Brand
	// Brands supplies logos for logo brands
	Brands *BrandStore
}

// Build assembles the fixed stage order: overlay, then watermark.
func Build(opts ChainOptions, logger *logging.Logger) *Chain {
	var stages []Stage
	if opts.TextOverlay {
		stages = append(stages, TextOverlay{})
	}
	if opts.Brand != nil {
		stages = append(stages, NewWatermark(*opts.Brand, opts.Brands))
	}
	return NewChain(logger, stages...)
}

// Apply runs every stage over img. A nil img is returned unchanged.
func (c *Chain) Apply(img image.Image, slide story.Slide) image.Image {
	if img == nil {
		return nil
	}
	current := img
	for _, stage := range c.stages {
		out, err := stage.Apply(current, slide)
		if err != nil {
			c.logger.Warn("post-processing stage failed; keeping its input",
				zap.Int(logging.FieldSlide, slide.Number),
				zap.String("stage", stage.Name()),
				zap.Error(err))
			continue
		}
		if out != nil {
			current = out
		}
	}
	return current
}

// Len returns the number of stages.
func (c *Chain) Len() int {
	return len(c.stages)
}

// Names returns the stage names in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}
