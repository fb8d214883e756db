// Package story defines the story plan handed to the image pipeline.
//
// plan.go holds the plan, slide and aesthetic types and their structural
// validation. Content is never validated here; the planning collaborator
// owns that.
package story

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPlan is returned when a plan fails structural validation.
var ErrInvalidPlan = errors.New("story: invalid plan")

// ImageFormat selects the output aspect of every slide in a plan.
type ImageFormat string

const (
	// FormatPortrait is the 9:16 story format.
	FormatPortrait ImageFormat = "story"
	// FormatSquare is the 1:1 post format.
	FormatSquare ImageFormat = "square"
)

// Dimensions is a pixel width and height.
type Dimensions struct {
	Width  int
	Height int
}

// ParseImageFormat maps a plan's image_size value to an ImageFormat.
// Anything other than "square" is treated as portrait.
func ParseImageFormat(s string) ImageFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square", "1:1":
		return FormatSquare
	default:
		return FormatPortrait
	}
}

// Dimensions returns the native render size for the format.
func (f ImageFormat) Dimensions() Dimensions {
	if f == FormatSquare {
		return Dimensions{Width: 1024, Height: 1024}
	}
	return Dimensions{Width: 768, Height: 1365}
}

// Describe returns the human-readable format line used in prompts.
func (f ImageFormat) Describe() string {
	if f == FormatSquare {
		return "square 1:1 format for Instagram posts"
	}
	return "vertical 9:16 portrait format for Instagram/WhatsApp stories"
}

// Aesthetic is the series-wide visual direction shared by every slide.
type Aesthetic struct {
	ArtStyle        string `json:"art_style" yaml:"art_style"`
	ColorPalette    string `json:"color_palette" yaml:"color_palette"`
	Lighting        string `json:"lighting" yaml:"lighting"`
	Texture         string `json:"texture" yaml:"texture"`
	Typography      string `json:"typography_style" yaml:"typography_style"`
	BackgroundStyle string `json:"background_style" yaml:"background_style"`
}

// Default aesthetic values applied when the planner leaves a field empty.
const (
	DefaultArtStyle        = "cinematic illustration"
	DefaultColorPalette    = "vibrant, eye-catching colors"
	DefaultLighting        = "dramatic, professional lighting"
	DefaultTexture         = "refined surface quality"
	DefaultBackgroundStyle = "complementary atmosphere"
)

// WithDefaults returns a copy with empty fields replaced by defaults.
// Typography has no default.
func (a Aesthetic) WithDefaults() Aesthetic {
	out := a
	if strings.TrimSpace(out.ArtStyle) == "" {
		out.ArtStyle = DefaultArtStyle
	}
	if strings.TrimSpace(out.ColorPalette) == "" {
		out.ColorPalette = DefaultColorPalette
	}
	if strings.TrimSpace(out.Lighting) == "" {
		out.Lighting = DefaultLighting
	}
	if strings.TrimSpace(out.Texture) == "" {
		out.Texture = DefaultTexture
	}
	if strings.TrimSpace(out.BackgroundStyle) == "" {
		out.BackgroundStyle = DefaultBackgroundStyle
	}
	return out
}

// Slide is one unit of planned content, mapped to exactly one image.
type Slide struct {
	Number            int    `json:"slide_number" yaml:"slide_number"`
	Title             string `json:"title" yaml:"title"`
	KeyFact           string `json:"key_fact" yaml:"key_fact"`
	VisualDescription string `json:"visual_description" yaml:"visual_description"`
	Mood              string `json:"mood" yaml:"mood"`
}

// Plan is an approved story plan. It is treated as immutable once handed
// to the pipeline.
type Plan struct {
	Topic     string      `json:"topic" yaml:"topic"`
	Aesthetic Aesthetic   `json:"aesthetic" yaml:"aesthetic"`
	Slides    []Slide     `json:"slides" yaml:"slides"`
	Format    ImageFormat `json:"image_size" yaml:"image_size"`
}

// Validate checks the plan's structure: at least one slide, numbered
// contiguously from 1 in position order.
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: plan is nil", ErrInvalidPlan)
	}
	if len(p.Slides) == 0 {
		return fmt.Errorf("%w: plan has no slides", ErrInvalidPlan)
	}
	for i, s := range p.Slides {
		if s.Number != i+1 {
			return fmt.Errorf("%w: slide at position %d has number %d, want %d",
				ErrInvalidPlan, i+1, s.Number, i+1)
		}
	}
	return nil
}

// ImageFormat returns the plan's format, defaulting to portrait.
func (p *Plan) ImageFormat() ImageFormat {
	return ParseImageFormat(string(p.Format))
}

// SlideCount returns the number of slides.
func (p *Plan) SlideCount() int {
	return len(p.Slides)
}
