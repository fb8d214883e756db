package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"storyforge/db"
	"storyforge/imagegen"
	"storyforge/metrics"
	"storyforge/pipeline"
	"storyforge/story"
)

func TestGenerate_BadRequests(t *testing.T) {
	gen := &fakeGenerator{}
	s := newTestServer(t, Dependencies{Generator: gen}, nil)

	tests := []struct {
		name string
		body any
	}{
		{"malformed JSON", `{"plan": `},
		{"missing plan", map[string]any{"provider": "fast"}},
		{"no slides", GenerateBody{Plan: &story.Plan{Topic: "Empty"}}},
		{"gap in numbering", GenerateBody{Plan: &story.Plan{Topic: "Gap", Slides: []story.Slide{{Number: 1}, {Number: 3}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodPost, "/generate_from_plan", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec); got.Message == "" {
				t.Error("error response has no message")
			}
		})
	}
	if n := len(gen.requests()); n != 0 {
		t.Errorf("generator called %d times for bad requests", n)
	}
}

func TestGenerate_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: %q", imagegen.ErrUnknownSelector, "dall-e"), http.StatusBadRequest},
		{fmt.Errorf("%w: third-party", imagegen.ErrProviderUnconfigured), http.StatusServiceUnavailable},
		{pipeline.ErrNoRegistry, http.StatusServiceUnavailable},
		{errors.New("output: permission denied"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := newTestServer(t, Dependencies{Generator: &fakeGenerator{err: tt.err}}, nil)
			rec := do(t, s.Handler(), http.MethodPost, "/generate_from_plan", GenerateBody{Plan: testPlan(1)})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGenerate_PassesRequest(t *testing.T) {
	overlay := true
	gen := &fakeGenerator{report: &pipeline.BatchReport{BatchID: "b1", Provider: imagegen.SelectorThirdParty}}
	s := newTestServer(t, Dependencies{Generator: gen}, nil)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	consistency := &story.Consistency{Environment: story.Environment{PrimarySetting: "reef"}}
	rec := do(t, s.Handler(), http.MethodPost, "/generate_from_plan", GenerateBody{
		Plan:        testPlan(2),
		Provider:    "fal",
		BrandID:     "acme",
		Consistency: consistency,
		TextOverlay: &overlay,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	reqs := gen.requests()
	if len(reqs) != 1 {
		t.Fatalf("generator called %d times", len(reqs))
	}
	got := reqs[0]
	wantDir := filepath.Join(s.config.OutputDir, "Ocean Facts_20260304_050607")
	if got.OutputDir != wantDir {
		t.Errorf("OutputDir = %q, want %q", got.OutputDir, wantDir)
	}
	if got.Provider != "fal" || got.BrandID != "acme" || got.TextOverlay == nil || !*got.TextOverlay {
		t.Errorf("request = %+v", got)
	}
	if got.Consistency == nil || got.Consistency.Environment.PrimarySetting != "reef" {
		t.Errorf("consistency not passed: %+v", got.Consistency)
	}

	resp := decode[GenerateResponse](t, rec)
	if resp.BatchID != "b1" || resp.Provider != "third-party" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Images == nil || resp.FailedSlides == nil {
		t.Error("empty lists must encode as [] not null")
	}
}

func TestGenerate_GateRefuses(t *testing.T) {
	gen := &fakeGenerator{}
	gate := &fakeGate{closed: true}
	s := newTestServer(t, Dependencies{Generator: gen, Gate: gate}, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/generate_from_plan", GenerateBody{Plan: testPlan(1)})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if len(gen.requests()) != 0 {
		t.Error("batch ran while shutting down")
	}
}

func TestGenerate_GateReleased(t *testing.T) {
	gen := &fakeGenerator{report: &pipeline.BatchReport{BatchID: "b1"}}
	gate := &fakeGate{}
	s := newTestServer(t, Dependencies{Generator: gen, Gate: gate}, nil)

	do(t, s.Handler(), http.MethodPost, "/generate_from_plan", GenerateBody{Plan: testPlan(1)})
	if gate.ActiveBatches() != 0 {
		t.Errorf("ActiveBatches() = %d after request, want 0", gate.ActiveBatches())
	}
	if len(gate.begun) != 1 || gate.begun[0] != "Ocean Facts" {
		t.Errorf("begun = %v", gate.begun)
	}
}

func TestGeneratedURL(t *testing.T) {
	got := generatedURL("Ocean Facts_20260304_050607", "/out/Ocean Facts_20260304_050607/Ocean Facts_20260304_050607_slide1.png")
	want := "/generated/Ocean%20Facts_20260304_050607/Ocean%20Facts_20260304_050607_slide1.png"
	if got != want {
		t.Errorf("generatedURL() = %q, want %q", got, want)
	}
}

// TestGenerate_EndToEnd runs a real batch through the pipeline, then reads
// the files and the stored history back over HTTP.
func TestGenerate_EndToEnd(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	repo := db.NewRepository(database, nil)
	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())

	registry := imagegen.NewRegistryWithProviders(map[imagegen.Selector]imagegen.Provider{
		imagegen.SelectorFast: solidProvider{failOn: "(slide 2)"},
	})
	gen := pipeline.NewGenerator(pipeline.Dependencies{
		Registry: registry,
		Metrics:  store,
		History:  repo,
		Logger:   newTestLogger(t),
	})
	s := newTestServer(t, Dependencies{Generator: gen, History: repo, Metrics: store}, nil)

	rec := do(t, s.Handler(), http.MethodPost, "/generate_from_plan", GenerateBody{Plan: testPlan(3), Provider: "fast"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[GenerateResponse](t, rec)
	if len(resp.Images) != 2 || len(resp.FailedSlides) != 1 || resp.FailedSlides[0] != 2 {
		t.Fatalf("images=%v failed=%v", resp.Images, resp.FailedSlides)
	}
	if resp.Slides[1].FailureClass != "rejected" || resp.Slides[1].Error == "" {
		t.Errorf("slide 2 = %+v", resp.Slides[1])
	}
	for i, want := range []string{"_slide1.png", "_slide3.png"} {
		if !strings.HasSuffix(resp.Images[i], want) {
			t.Errorf("image %d = %q, want suffix %q", i, resp.Images[i], want)
		}
	}

	for _, u := range resp.Images {
		img := do(t, s.Handler(), http.MethodGet, u, nil)
		if img.Code != http.StatusOK {
			t.Errorf("GET %s = %d", u, img.Code)
			continue
		}
		if ct := img.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("GET %s Content-Type = %q", u, ct)
		}
	}

	folder := resp.Images[0][:strings.LastIndex(resp.Images[0], "/")+1]
	if rec := do(t, s.Handler(), http.MethodGet, folder, nil); rec.Code != http.StatusNotFound {
		t.Errorf("directory listing status = %d, want 404", rec.Code)
	}

	batch := do(t, s.Handler(), http.MethodGet, "/history/"+resp.BatchID, nil)
	if batch.Code != http.StatusOK {
		t.Fatalf("history status = %d: %s", batch.Code, batch.Body.String())
	}
	record := decode[db.BatchRecord](t, batch)
	if record.Status != db.BatchStatusPartial || record.Succeeded != 2 || len(record.Slides) != 3 {
		t.Errorf("history record = %+v", record)
	}

	if p, ok := store.Provider("fast"); !ok || p.SlidesFailed != 1 {
		t.Errorf("metrics = %+v, %v", p, ok)
	}
}
