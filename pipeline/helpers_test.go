package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyforge/imagegen"
	"storyforge/logging"
	"storyforge/story"

	"go.uber.org/zap/zaptest"
)

// stubProvider is a scripted imagegen.Provider. script decides the outcome
// of each call from the slide marker in the prompt and the number of calls
// already made for that slide.
type stubProvider struct {
	name   string
	seeded bool
	delay  func(slide int) time.Duration
	script func(ctx context.Context, slide, call int) (image.Image, error)

	total    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32

	mu    sync.Mutex
	calls map[int]int
	seeds []*int64
}

func newStub(name string) *stubProvider {
	return &stubProvider{name: name, calls: make(map[int]int)}
}

func (p *stubProvider) Name() string       { return p.name }
func (p *stubProvider) SupportsSeed() bool { return p.seeded }

func (p *stubProvider) Generate(ctx context.Context, req imagegen.Request) (image.Image, error) {
	p.total.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}

	slide := slideOf(req.Prompt)
	p.mu.Lock()
	p.calls[slide]++
	call := p.calls[slide]
	p.seeds = append(p.seeds, req.Seed)
	p.mu.Unlock()

	if p.delay != nil {
		time.Sleep(p.delay(slide))
	}
	if p.script != nil {
		return p.script(ctx, slide, call)
	}
	return solid(imagegen.Size{Width: 32, Height: 32}, stubColor), nil
}

func (p *stubProvider) callsFor(slide int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[slide]
}

func (p *stubProvider) seenSeeds() []*int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*int64(nil), p.seeds...)
}

var stubColor = color.RGBA{R: 40, G: 90, B: 160, A: 255}

func marker(slide int) string {
	return fmt.Sprintf("[[slide %d]]", slide)
}

func slideOf(prompt string) int {
	i := strings.Index(prompt, "[[slide ")
	if i < 0 {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(prompt[i:], "[[slide %d]]", &n); err != nil {
		return 0
	}
	return n
}

func solid(size imagegen.Size, c color.RGBA) *image.RGBA {
	w, h := size.Width, size.Height
	if w <= 0 || h <= 0 {
		w, h = 8, 8
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func rateLimitedErr() error {
	return &imagegen.ProviderError{Provider: "stub", Class: imagegen.ClassRateLimited, StatusCode: 429, Err: errors.New("quota exceeded")}
}

func rejectedErr() error {
	return &imagegen.ProviderError{Provider: "stub", Class: imagegen.ClassRejected, StatusCode: 400, Err: errors.New("content policy")}
}

func transportErr() error {
	return &imagegen.ProviderError{Provider: "stub", Class: imagegen.ClassTransport, StatusCode: 503, Err: errors.New("unavailable")}
}

// sleepRecorder replaces the backoff sleep and records requested delays.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return s.err
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// fastRetry is a RetryConfig that never really sleeps.
func fastRetry(sleeper *sleepRecorder) RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		BackoffBase:     2.0,
		ProviderTimeout: 5 * time.Second,
		Sleep:           sleeper.sleep,
		Jitter:          func() float64 { return 0.5 },
	}
}

func testPlan(n int) *story.Plan {
	plan := &story.Plan{
		Topic:  "Ocean Facts",
		Format: story.FormatSquare,
	}
	for i := 1; i <= n; i++ {
		plan.Slides = append(plan.Slides, story.Slide{
			Number:            i,
			Title:             fmt.Sprintf("Slide %d", i),
			KeyFact:           fmt.Sprintf("Fact %d", i),
			VisualDescription: "a reef " + marker(i),
		})
	}
	return plan
}

func tasksFor(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{SlideNumber: i + 1, Prompt: marker(i + 1), Size: imagegen.Size{Width: 8, Height: 8}}
	}
	return tasks
}

func newTestLogger(t *testing.T) *logging.Logger {
	return logging.FromZap(zaptest.NewLogger(t))
}
