// generator.go implements the Generator organism: the end-to-end
// GenerateFromPlan operation that turns a validated plan into ordered PNG
// files.
//
// This organism composes:
//   - prompt.Compose: one prompt per slide
//   - imagegen.Registry / SeedAllocator: provider selection and batch seed
//   - scheduler.go / retry.go: bounded, retrying generation
//   - assembler.go: slide ordering
//   - postprocess.Chain: optional overlay and watermark
//   - output.Writer: PNG files
//   - metrics.Recorder / HistoryRecorder: per-batch bookkeeping
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"storyforge/db"
	"storyforge/imagegen"
	"storyforge/logging"
	"storyforge/metrics"
	"storyforge/output"
	"storyforge/postprocess"
	"storyforge/prompt"
	"storyforge/story"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoRegistry is returned when a Generator has no provider registry.
var ErrNoRegistry = errors.New("pipeline: provider registry is not set")

// HistoryRecorder persists finished batches. *db.Repository implements it.
type HistoryRecorder interface {
	RecordBatch(ctx context.Context, rec db.BatchRecord) error
}

var _ HistoryRecorder = (*db.Repository)(nil)

// GenerateRequest is the input to GenerateFromPlan.
type GenerateRequest struct {
	// Plan is the approved story plan. Required.
	Plan *story.Plan

	// OutputDir receives the PNG files. Defaults to the generator's
	// configured output directory.
	OutputDir string

	// Provider selects the provider tier. Aliases are accepted; empty
	// selects the fast tier.
	Provider imagegen.Selector

	// BrandID picks the watermark brand. Empty uses the first configured
	// brand; an unknown id disables the watermark.
	BrandID string

	// Consistency holds optional cross-slide continuity hints.
	Consistency *story.Consistency

	// MaxConcurrency caps in-flight slides. Zero uses the configured value.
	MaxConcurrency int

	// TextOverlay overrides the configured overlay toggle when non-nil.
	TextOverlay *bool
}

// SlideOutcome is the per-slide part of a BatchReport.
type SlideOutcome struct {
	SlideNumber  int
	Path         string // empty when the slide failed
	Attempts     int
	Failure      error
	FailureClass string
	Duration     time.Duration
}

// OK reports whether the slide produced a file.
func (o SlideOutcome) OK() bool {
	return o.Failure == nil && o.Path != ""
}

// BatchReport describes one GenerateFromPlan call.
type BatchReport struct {
	BatchID  string
	Topic    string
	Provider imagegen.Selector
	// Paths holds the files of successful slides in slide order.
	Paths    []string
	Slides   []SlideOutcome
	Seed     *int64
	Started  time.Time
	Duration time.Duration
}

// Succeeded returns the number of slides that produced a file.
func (r *BatchReport) Succeeded() int {
	return len(r.Paths)
}

// FailedSlides returns the numbers of slides without a file.
func (r *BatchReport) FailedSlides() []int {
	var out []int
	for _, s := range r.Slides {
		if !s.OK() {
			out = append(out, s.SlideNumber)
		}
	}
	return out
}

// GeneratorConfig contains configuration for the Generator.
type GeneratorConfig struct {
	// OutputDir is used when a request names none.
	OutputDir string

	// MaxConcurrency is used when a request sets none. Defaults to 3.
	MaxConcurrency int

	// TextOverlay enables the overlay stage unless a request overrides it.
	TextOverlay bool

	// Retry configures the per-slide RetryingRunner.
	Retry RetryConfig
}

// DefaultGeneratorConfig returns a GeneratorConfig with sensible defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		OutputDir:      "./generated_images",
		MaxConcurrency: DefaultMaxConcurrency,
		Retry:          DefaultRetryConfig(),
	}
}

// Dependencies are the collaborators a Generator uses. Only Registry is
// required.
type Dependencies struct {
	Registry *imagegen.Registry
	Seeds    *imagegen.SeedAllocator
	Brands   *postprocess.BrandStore
	Writer   *output.Writer
	Metrics  metrics.Recorder
	History  HistoryRecorder
	Logger   *logging.Logger
}

// Generator runs batches. It is safe for concurrent use; each call to
// GenerateFromPlan is an independent batch.
type Generator struct {
	registry atomic.Pointer[imagegen.Registry]
	seeds    *imagegen.SeedAllocator
	brands   *postprocess.BrandStore
	writer   *output.Writer
	metrics  metrics.Recorder
	history  HistoryRecorder
	config   GeneratorConfig
	logger   *logging.Logger
	now      func() time.Time
}

// NewGenerator creates a generator with default configuration.
func NewGenerator(deps Dependencies) *Generator {
	return NewGeneratorWithConfig(deps, DefaultGeneratorConfig())
}

// NewGeneratorWithConfig creates a generator with custom configuration.
func NewGeneratorWithConfig(deps Dependencies, config GeneratorConfig) *Generator {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultMaxConcurrency
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultGeneratorConfig().OutputDir
	}
	if deps.Seeds == nil {
		deps.Seeds = imagegen.NewSeedAllocator()
	}
	if deps.Writer == nil {
		deps.Writer = output.NewWriter()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}

	g := &Generator{
		seeds:   deps.Seeds,
		brands:  deps.Brands,
		writer:  deps.Writer,
		metrics: deps.Metrics,
		history: deps.History,
		config:  config,
		logger:  deps.Logger.Named("pipeline"),
		now:     time.Now,
	}
	if deps.Registry != nil {
		g.registry.Store(deps.Registry)
	}
	return g
}

// Registry returns the current provider registry.
func (g *Generator) Registry() *imagegen.Registry {
	return g.registry.Load()
}

// SetRegistry swaps the provider registry. Batches already running keep
// the provider they resolved.
func (g *Generator) SetRegistry(r *imagegen.Registry) {
	if r != nil {
		g.registry.Store(r)
	}
}

// GenerateFromPlan generates one image per slide and writes them to
// req.OutputDir.
//
// An invalid plan, an unknown selector, an unconfigured provider or an
// unwritable output directory fail the whole batch before any provider
// call. Every other failure is per slide: it is reported in the
// BatchReport and the remaining slides still complete, so a nil error does
// not mean every slide succeeded.
func (g *Generator) GenerateFromPlan(ctx context.Context, req GenerateRequest) (*BatchReport, error) {
	if err := req.Plan.Validate(); err != nil {
		return nil, err
	}
	registry := g.registry.Load()
	if registry == nil {
		return nil, ErrNoRegistry
	}
	sel, provider, err := registry.Resolve(string(req.Provider))
	if err != nil {
		return nil, err
	}

	dir := req.OutputDir
	if dir == "" {
		dir = g.config.OutputDir
	}
	if err := g.writer.EnsureDir(dir); err != nil {
		return nil, err
	}

	plan := req.Plan
	started := g.now()
	report := &BatchReport{
		BatchID:  uuid.NewString(),
		Topic:    plan.Topic,
		Provider: sel,
		Seed:     g.seeds.Allocate(provider),
		Started:  started,
	}
	log := g.logger.With(
		zap.String(logging.FieldBatchID, report.BatchID),
		zap.String(logging.FieldProvider, string(sel)))

	fields := []zap.Field{zap.Int("slides", plan.SlideCount())}
	if report.Seed != nil {
		fields = append(fields, zap.Int64(logging.FieldSeed, *report.Seed))
	}
	log.Info("batch started", fields...)

	tasks := g.buildTasks(plan, req.Consistency, report.Seed)

	concurrency := req.MaxConcurrency
	if concurrency <= 0 {
		concurrency = g.config.MaxConcurrency
	}
	runner := NewRetryingRunnerWithConfig(provider, g.config.Retry, log)
	scheduler := NewScheduler(runner, concurrency, log)
	results := Assemble(scheduler.Schedule(ctx, tasks), plan.SlideCount())

	chain := g.buildChain(req, log)
	frames := make([]output.Frame, 0, len(results))
	for i, res := range results {
		if res.OK() {
			frames = append(frames, output.Frame{SlideNumber: res.SlideNumber, Image: chain.Apply(res.Image, plan.Slides[i])})
		}
	}
	paths, writeErr := g.writer.Write(frames, dir, plan.Topic, started)
	written, writeFailed := pairPaths(frames, paths, writeErr)

	report.Slides = make([]SlideOutcome, len(results))
	for i, res := range results {
		report.Slides[i] = g.finishSlide(res, written[res.SlideNumber], writeFailed[res.SlideNumber], log)
		if report.Slides[i].OK() {
			report.Paths = append(report.Paths, report.Slides[i].Path)
		}
	}
	report.Duration = g.now().Sub(started)

	g.record(ctx, report, results, log)
	return report, nil
}

func (g *Generator) buildTasks(plan *story.Plan, consistency *story.Consistency, seed *int64) []Task {
	dims := plan.ImageFormat().Dimensions()
	size := imagegen.Size{Width: dims.Width, Height: dims.Height}

	tasks := make([]Task, len(plan.Slides))
	for i, slide := range plan.Slides {
		tasks[i] = Task{
			SlideNumber: slide.Number,
			Prompt:      prompt.Compose(slide, plan, consistency),
			Size:        size,
			Seed:        seed,
		}
	}
	return tasks
}

func (g *Generator) buildChain(req GenerateRequest, log *logging.Logger) *postprocess.Chain {
	opts := postprocess.ChainOptions{
		TextOverlay: g.config.TextOverlay,
		Brands:      g.brands,
	}
	if req.TextOverlay != nil {
		opts.TextOverlay = *req.TextOverlay
	}
	if brand, ok := g.brands.Resolve(req.BrandID); ok {
		opts.Brand = brand
	} else if req.BrandID != "" {
		log.Warn("unknown brand; watermark disabled", zap.String("brand_id", req.BrandID))
	}
	return postprocess.Build(opts, log)
}

// pairPaths matches the paths returned by Writer.Write back to the frames
// handed to it. Paths arrive in frame order with failed frames left out.
func pairPaths(frames []output.Frame, paths []string, err error) (map[int]string, map[int]error) {
	failed := output.FailedFrames(err)
	if err != nil && failed == nil {
		failed = make(map[int]error, len(frames))
		for _, f := range frames {
			failed[f.SlideNumber] = err
		}
		return nil, failed
	}

	written := make(map[int]string, len(paths))
	next := 0
	for _, f := range frames {
		if _, ok := failed[f.SlideNumber]; ok || next >= len(paths) {
			continue
		}
		written[f.SlideNumber] = paths[next]
		next++
	}
	return written, failed
}

// finishSlide turns one assembled result and its write outcome into a
// SlideOutcome.
func (g *Generator) finishSlide(res Result, path string, writeErr error, log *logging.Logger) SlideOutcome {
	outcome := SlideOutcome{
		SlideNumber: res.SlideNumber,
		Attempts:    res.Attempts,
		Duration:    res.Duration,
	}
	if !res.OK() {
		outcome.Failure = res.Err
		if outcome.Failure == nil {
			outcome.Failure = imagegen.ErrNoImage
		}
		outcome.FailureClass = failureLabel(res)
		log.Warn("slide failed",
			zap.Int(logging.FieldSlide, res.SlideNumber),
			zap.String(logging.FieldClass, outcome.FailureClass),
			zap.Int("attempts", res.Attempts),
			zap.Error(outcome.Failure))
		return outcome
	}

	if writeErr == nil && path == "" {
		writeErr = fmt.Errorf("pipeline: slide %d was not written", res.SlideNumber)
	}
	if writeErr != nil {
		outcome.Failure = writeErr
		outcome.FailureClass = "write"
		log.Error("failed to write slide", zap.Int(logging.FieldSlide, res.SlideNumber), zap.Error(writeErr))
		return outcome
	}
	outcome.Path = path
	return outcome
}

func (g *Generator) record(ctx context.Context, report *BatchReport, results []Result, log *logging.Logger) {
	sample := metrics.BatchSample{
		BatchID:   report.BatchID,
		Provider:  string(report.Provider),
		Topic:     report.Topic,
		Slides:    len(report.Slides),
		Succeeded: report.Succeeded(),
		Duration:  report.Duration,
		Finished:  report.Started.Add(report.Duration),
	}
	for _, r := range results {
		sample.Attempts += r.Attempts
		sample.RateLimitedRetries += r.RateLimitedRetries
		sample.SlideLatency += r.Duration
	}
	g.metrics.RecordBatch(sample)

	log.Info("batch finished", logging.BatchField(logging.BatchSummary{
		BatchID:   report.BatchID,
		Topic:     report.Topic,
		Provider:  string(report.Provider),
		Slides:    len(report.Slides),
		Succeeded: report.Succeeded(),
		Failed:    report.FailedSlides(),
		Seed:      report.Seed,
		Duration:  report.Duration,
	}))

	if g.history == nil {
		return
	}
	// History is written even if the caller has gone away.
	if err := g.history.RecordBatch(context.WithoutCancel(ctx), historyRecord(report)); err != nil {
		log.Warn("failed to record batch history", zap.Error(err))
	}
}

func historyRecord(report *BatchReport) db.BatchRecord {
	rec := db.BatchRecord{
		ID:         report.BatchID,
		Topic:      report.Topic,
		Provider:   string(report.Provider),
		Seed:       report.Seed,
		SlideCount: len(report.Slides),
		Succeeded:  report.Succeeded(),
		DurationMS: report.Duration.Milliseconds(),
		CreatedAt:  report.Started,
		Slides:     make([]db.SlideRecord, len(report.Slides)),
	}
	rec.Status = db.BatchStatus(rec.Succeeded, rec.SlideCount)
	for i, s := range report.Slides {
		sr := db.SlideRecord{
			SlideNumber: s.SlideNumber,
			Status:      db.SlideStatusSuccess,
			Attempts:    s.Attempts,
			Path:        s.Path,
			DurationMS:  s.Duration.Milliseconds(),
		}
		if !s.OK() {
			sr.Status = db.SlideStatusFailed
			sr.FailureClass = s.FailureClass
			sr.ErrorMessage = s.Failure.Error()
		}
		rec.Slides[i] = sr
	}
	return rec
}

// failureLabel names why a result has no image.
func failureLabel(res Result) string {
	switch {
	case errors.Is(res.Err, ErrBatchCancelled):
		return "cancelled"
	case errors.Is(res.Err, ErrNoResult):
		return "missing"
	default:
		return res.FailureClass().String()
	}
}

// String summarises the report for CLI output.
func (r *BatchReport) String() string {
	return fmt.Sprintf("batch %s: %d/%d slides on %s in %s",
		r.BatchID, r.Succeeded(), len(r.Slides), r.Provider, r.Duration.Round(time.Millisecond))
}
