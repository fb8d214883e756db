package postprocess

import (
	"image"
	"image/color"
	"strings"

	"storyforge/story"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
)

// Overlay sizing, as fractions of the image height and width.
const (
	titleSizeRatio   = 0.045
	factSizeRatio    = 0.032
	minTitleSize     = 24
	minFactSize      = 18
	paddingRatio     = 0.05
	titleLineGap     = 8
	factLineGap      = 6
	titleGradientTop = 180
	factGradientEnd  = 160
)

var (
	textColor        = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	titleShadowColor = color.NRGBA{A: 200}
	factShadowColor  = color.NRGBA{A: 180}
)

// TextOverlay draws the slide title across the top and the key fact
// across the bottom, each on a dark gradient for legibility.
type TextOverlay struct{}

// Name implements Stage.
func (TextOverlay) Name() string { return "text_overlay" }

// Apply implements Stage. Slides with neither title nor key fact are
// returned as-is.
func (TextOverlay) Apply(src image.Image, slide story.Slide) (image.Image, error) {
	title := strings.TrimSpace(slide.Title)
	fact := strings.TrimSpace(slide.KeyFact)
	if title == "" && fact == "" {
		return src, nil
	}

	dst := cloneRGBA(src)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	padding := int(float64(w) * paddingRatio)
	maxWidth := w - 2*padding

	if title != "" {
		size := max(minTitleSize, int(float64(h)*titleSizeRatio))
		face := newFace(true, size)
		lines := wrapText(face, strings.ToUpper(title), maxWidth)
		lineHeight := size + titleLineGap
		area := min(h, len(lines)*lineHeight+2*padding)

		fadeBand(dst, 0, area, titleGradientTop, 0)
		drawCentered(dst, face, lines, padding, lineHeight, max(2, size/20), titleShadowColor)
	}

	if fact != "" {
		size := max(minFactSize, int(float64(h)*factSizeRatio))
		face := newFace(false, size)
		lines := wrapText(face, fact, maxWidth)
		lineHeight := size + factLineGap
		area := min(h, len(lines)*lineHeight+2*padding)

		fadeBand(dst, h-area, area, 0, factGradientEnd)
		drawCentered(dst, face, lines, h-area+padding, lineHeight, max(1, size/25), factShadowColor)
	}

	return dst, nil
}

// fadeBand darkens rows [top, top+height) with black whose alpha moves
// linearly from fromAlpha to toAlpha.
func fadeBand(dst *image.RGBA, top, height, fromAlpha, toAlpha int) {
	if height <= 0 {
		return
	}
	w := dst.Bounds().Dx()
	for y := 0; y < height; y++ {
		alpha := fromAlpha + (toAlpha-fromAlpha)*y/height
		if alpha <= 0 {
			continue
		}
		row := image.Rect(0, top+y, w, top+y+1)
		draw.Draw(dst, row, image.NewUniform(color.NRGBA{A: uint8(alpha)}), image.Point{}, draw.Over)
	}
}

// drawCentered draws each line horizontally centred, starting at top, with
// a drop shadow offset by shadow pixels.
func drawCentered(dst *image.RGBA, face font.Face, lines []string, top, lineHeight, shadow int, shadowColor color.Color) {
	w := dst.Bounds().Dx()
	y := top
	for _, line := range lines {
		x := (w - textWidth(face, line)) / 2
		drawText(dst, face, x+shadow, y+shadow, line, shadowColor)
		drawText(dst, face, x, y, line, textColor)
		y += lineHeight
	}
}
