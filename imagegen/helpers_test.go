package imagegen

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
)

// pngBytes encodes a solid w x h PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// mockProvider is a Provider whose behavior is set per test.
type mockProvider struct {
	name         string
	seeded       bool
	generateFunc func(ctx context.Context, req Request) (image.Image, error)
	calls        atomic.Int32
}

func (m *mockProvider) Name() string       { return m.name }
func (m *mockProvider) SupportsSeed() bool { return m.seeded }

func (m *mockProvider) Generate(ctx context.Context, req Request) (image.Image, error) {
	m.calls.Add(1)
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return image.NewRGBA(image.Rect(0, 0, req.Size.Width, req.Size.Height)), nil
}
