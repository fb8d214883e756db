package postprocess

import (
	"errors"
	"image"
	"image/color"
	"strconv"
	"strings"

	"storyforge/story"

	"golang.org/x/image/draw"
)

// Watermark stamps a brand's logo or text into one corner.
type Watermark struct {
	brand  Brand
	brands *BrandStore
}

// NewWatermark creates a watermark stage for brand. brands supplies logo
// files and may be nil for text brands.
func NewWatermark(brand Brand, brands *BrandStore) *Watermark {
	if brands == nil {
		brands = NewBrandStore("")
	}
	return &Watermark{brand: brand, brands: brands}
}

// Name implements Stage.
func (w *Watermark) Name() string { return "watermark" }

// Apply implements Stage. A logo brand without a logo file, or a text brand
// without text, leaves the image untouched.
func (w *Watermark) Apply(src image.Image, _ story.Slide) (image.Image, error) {
	if w.brand.Type == BrandText {
		return w.applyText(src), nil
	}

	logo, err := w.brands.Logo(w.brand)
	if errors.Is(err, ErrLogoNotFound) {
		return src, nil
	}
	if err != nil {
		return nil, err
	}
	return w.applyLogo(src, logo), nil
}

func (w *Watermark) applyLogo(src, logo image.Image) image.Image {
	dst := cloneRGBA(src)
	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()

	lb := logo.Bounds()
	lw, lh := lb.Dx(), lb.Dy()
	if lw == 0 || lh == 0 {
		return dst
	}
	if maxWidth := width * w.brand.LogoSize / 100; maxWidth > 0 && lw > maxWidth {
		lh = max(1, lh*maxWidth/lw)
		lw = maxWidth
	}
	scaled := image.NewRGBA(image.Rect(0, 0, lw, lh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), logo, lb, draw.Src, nil)

	x, y := cornerOrigin(width, height, lw, lh, w.brand.Position, w.brand.Padding)
	target := image.Rect(x, y, x+lw, y+lh)

	var mask image.Image
	if w.brand.Opacity < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(255 * w.brand.Opacity)})
	}
	draw.DrawMask(dst, target, scaled, image.Point{}, mask, image.Point{}, draw.Over)
	return dst
}

func (w *Watermark) applyText(src image.Image) image.Image {
	text := strings.TrimSpace(w.brand.Text)
	if text == "" {
		return src
	}

	dst := cloneRGBA(src)
	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()

	face := newFace(false, w.brand.FontSize)
	tw, th := textWidth(face, text), textHeight(face)
	x, y := cornerOrigin(width, height, tw, th, w.brand.Position, w.brand.Padding)

	alpha := uint8(255 * w.brand.Opacity)
	r, g, b := parseHexColor(w.brand.FontColor)
	shadow := max(1, w.brand.FontSize/12)

	drawText(dst, face, x+shadow, y+shadow, text, color.NRGBA{A: alpha / 2})
	drawText(dst, face, x, y, text, color.NRGBA{R: r, G: g, B: b, A: alpha})
	return dst
}

// cornerOrigin returns the top-left point of an element placed in corner
// with padding pixels from both edges.
func cornerOrigin(imgW, imgH, elemW, elemH int, corner Corner, padding int) (int, int) {
	switch corner {
	case TopLeft:
		return padding, padding
	case TopRight:
		return imgW - elemW - padding, padding
	case BottomLeft:
		return padding, imgH - elemH - padding
	default:
		return imgW - elemW - padding, imgH - elemH - padding
	}
}

// parseHexColor parses "#RRGGBB". Anything else is white.
func parseHexColor(s string) (uint8, uint8, uint8) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 255, 255, 255
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 255, 255, 255
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}
