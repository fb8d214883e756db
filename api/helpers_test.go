package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"storyforge/db"
	"storyforge/imagegen"
	"storyforge/logging"
	"storyforge/pipeline"
	"storyforge/story"

	"go.uber.org/zap/zaptest"
)

// fakeGenerator returns a canned report and remembers the request.
type fakeGenerator struct {
	mu       sync.Mutex
	report   *pipeline.BatchReport
	err      error
	got      []pipeline.GenerateRequest
	registry *imagegen.Registry
}

func (g *fakeGenerator) GenerateFromPlan(_ context.Context, req pipeline.GenerateRequest) (*pipeline.BatchReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = append(g.got, req)
	return g.report, g.err
}

func (g *fakeGenerator) Registry() *imagegen.Registry { return g.registry }

func (g *fakeGenerator) requests() []pipeline.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]pipeline.GenerateRequest(nil), g.got...)
}

type fakeHistory struct {
	batches []db.BatchRecord
	err     error
	limit   int
}

func (h *fakeHistory) QueryRecentBatches(_ context.Context, limit int) ([]db.BatchRecord, error) {
	h.limit = limit
	if h.err != nil {
		return nil, h.err
	}
	return h.batches[:min(limit, len(h.batches))], nil
}

func (h *fakeHistory) QueryBatch(_ context.Context, id string) (*db.BatchRecord, error) {
	if h.err != nil {
		return nil, h.err
	}
	for i := range h.batches {
		if h.batches[i].ID == id {
			return &h.batches[i], nil
		}
	}
	return nil, db.ErrBatchNotFound
}

// fakeGate refuses batches once closed is set.
type fakeGate struct {
	mu     sync.Mutex
	closed bool
	active int
	begun  []string
}

var errClosed = errors.New("shutdown: server is shutting down")

func (g *fakeGate) BeginBatch(label string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, errClosed
	}
	g.active++
	g.begun = append(g.begun, label)
	return func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}, nil
}

func (g *fakeGate) ActiveBatches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// solidProvider answers every call with a solid image, rejecting prompts
// that contain failOn.
type solidProvider struct{ failOn string }

func (solidProvider) Name() string       { return "solid" }
func (solidProvider) SupportsSeed() bool { return false }

func (p solidProvider) Generate(_ context.Context, req imagegen.Request) (image.Image, error) {
	if p.failOn != "" && strings.Contains(req.Prompt, p.failOn) {
		return nil, &imagegen.ProviderError{Provider: "solid", Class: imagegen.ClassRejected, Err: errors.New("blocked")}
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func newTestLogger(t *testing.T) *logging.Logger {
	return logging.FromZap(zaptest.NewLogger(t))
}

func newTestServer(t *testing.T, deps Dependencies, mutate func(*ServerConfig)) *Server {
	t.Helper()
	config := DefaultServerConfig()
	config.OutputDir = t.TempDir()
	if mutate != nil {
		mutate(&config)
	}
	if deps.Logger == nil {
		deps.Logger = newTestLogger(t)
	}
	s, err := NewServer(config, deps)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s
}

func testPlan(slides int) *story.Plan {
	plan := &story.Plan{Topic: "Ocean Facts", Format: "square"}
	for i := 1; i <= slides; i++ {
		plan.Slides = append(plan.Slides, story.Slide{
			Number:            i,
			Title:             "Slide",
			VisualDescription: fmt.Sprintf("a coral reef (slide %d)", i),
		})
	}
	return plan
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
