package postprocess

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"storyforge/story"
)

func TestWatermark_Logo(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "logos", "acme.png"), solidImage(100, 50, color.RGBA{R: 255, A: 255}))

	brand := Brand{ID: "acme", Type: BrandLogo, LogoSize: 10, Position: BottomRight, Opacity: 0.7, Padding: 20}
	w := NewWatermark(brand, NewBrandStore(dir, brand))

	src := solidImage(400, 400, gray)
	out, err := w.Apply(src, story.Slide{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// 10% of 400 is 40, so the logo scales to 40x20 at (340, 360).
	inside := rgbaAt(out, 355, 370)
	if inside.R < 190 || inside.G > 60 {
		t.Errorf("logo pixel = %v, want red blended at 70%%", inside)
	}
	if inside.R == 255 {
		t.Error("opacity was not applied")
	}
	if rgbaAt(out, 335, 370) != gray || rgbaAt(out, 355, 385) != gray {
		t.Error("logo drawn outside its box")
	}
	if rgbaAt(src, 355, 370) != gray {
		t.Error("Apply modified its input")
	}
}

func TestWatermark_LogoCorners(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "logo.png"), solidImage(10, 10, color.RGBA{B: 255, A: 255}))

	tests := []struct {
		corner Corner
		probe  image.Point
	}{
		{TopLeft, image.Pt(12, 12)},
		{TopRight, image.Pt(88, 12)},
		{BottomLeft, image.Pt(12, 88)},
		{BottomRight, image.Pt(88, 88)},
	}
	for _, tt := range tests {
		t.Run(string(tt.corner), func(t *testing.T) {
			brand := Brand{Type: BrandLogo, LogoSize: 50, Position: tt.corner, Opacity: 1, Padding: 5}
			out, err := NewWatermark(brand, NewBrandStore(dir)).Apply(solidImage(100, 100, gray), story.Slide{})
			if err != nil {
				t.Fatal(err)
			}
			if c := rgbaAt(out, tt.probe.X, tt.probe.Y); c.B != 255 || c.R != 0 {
				t.Errorf("pixel at %v = %v, want opaque logo", tt.probe, c)
			}
		})
	}
}

func TestWatermark_MissingLogoIsNoop(t *testing.T) {
	brand := Brand{ID: "ghost", Type: BrandLogo, LogoSize: 15}
	src := solidImage(50, 50, gray)

	out, err := NewWatermark(brand, NewBrandStore(t.TempDir(), brand)).Apply(src, story.Slide{})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if out != image.Image(src) {
		t.Error("missing logo should leave the image untouched")
	}
}

func TestWatermark_CorruptLogoErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "logo.png"), "not a png")

	_, err := NewWatermark(Brand{Type: BrandLogo, LogoSize: 15}, NewBrandStore(dir)).Apply(solidImage(20, 20, gray), story.Slide{})
	if err == nil {
		t.Error("expected decode error so the chain keeps its input")
	}
}

func TestWatermark_Text(t *testing.T) {
	brand := Brand{Type: BrandText, Text: "ACME", FontSize: 24, FontColor: "#FFFFFF", Position: BottomRight, Opacity: 1, Padding: 10}
	src := solidImage(300, 200, gray)

	out, err := NewWatermark(brand, nil).Apply(src, story.Slide{})
	if err != nil {
		t.Fatal(err)
	}
	if !hasBrightPixel(out, image.Rect(150, 140, 300, 200)) {
		t.Error("no text drawn in the bottom-right corner")
	}
	if changedIn(src, out, image.Rect(0, 0, 150, 100)) {
		t.Error("text watermark touched the far corner")
	}
}

func TestWatermark_EmptyTextIsNoop(t *testing.T) {
	src := solidImage(20, 20, gray)
	out, _ := NewWatermark(Brand{Type: BrandText}, nil).Apply(src, story.Slide{})
	if out != image.Image(src) {
		t.Error("empty text should leave the image untouched")
	}
}

func TestCornerOrigin(t *testing.T) {
	tests := []struct {
		corner Corner
		x, y   int
	}{
		{TopLeft, 20, 20},
		{TopRight, 1000 - 100 - 20, 20},
		{BottomLeft, 20, 500 - 50 - 20},
		{BottomRight, 1000 - 100 - 20, 500 - 50 - 20},
		{Corner("center"), 1000 - 100 - 20, 500 - 50 - 20},
	}
	for _, tt := range tests {
		x, y := cornerOrigin(1000, 500, 100, 50, tt.corner, 20)
		if x != tt.x || y != tt.y {
			t.Errorf("cornerOrigin(%s) = (%d, %d), want (%d, %d)", tt.corner, x, y, tt.x, tt.y)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b uint8
	}{
		{"#FF8000", 255, 128, 0},
		{"00ff00", 0, 255, 0},
		{"#FFF", 255, 255, 255},
		{"#GGGGGG", 255, 255, 255},
		{"", 255, 255, 255},
	}
	for _, tt := range tests {
		r, g, b := parseHexColor(tt.in)
		if r != tt.r || g != tt.g || b != tt.b {
			t.Errorf("parseHexColor(%q) = %d,%d,%d", tt.in, r, g, b)
		}
	}
}
