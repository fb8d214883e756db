package main

import (
	"fmt"
	"io"
	"time"

	"storyforge/db"
	"storyforge/metrics"
	"storyforge/pipeline"

	"github.com/fatih/color"
)

// printReport prints a per-slide summary of one batch.
func printReport(w io.Writer, r *pipeline.BatchReport) {
	fmt.Fprintln(w)
	color.New(color.FgCyan, color.Bold).Fprintf(w, "━━━ %s ━━━\n", r.Topic)
	dim := color.New(color.FgHiBlack)
	dim.Fprintf(w, "  batch %s on %s", r.BatchID, r.Provider)
	if r.Seed != nil {
		dim.Fprintf(w, " (seed %d)", *r.Seed)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	for _, s := range r.Slides {
		if s.OK() {
			color.New(color.FgGreen).Fprintf(w, "  ✓ slide %d", s.SlideNumber)
			dim.Fprintf(w, " - %s", s.Path)
		} else {
			color.New(color.FgRed).Fprintf(w, "  ✗ slide %d", s.SlideNumber)
			dim.Fprintf(w, " - %s", s.FailureClass)
		}
		if s.Attempts > 1 {
			color.New(color.FgYellow).Fprintf(w, " (%d attempts)", s.Attempts)
		}
		fmt.Fprintln(w)
		if !s.OK() && s.Failure != nil {
			color.New(color.FgRed).Fprintf(w, "    └─ %s\n", s.Failure.Error())
		}
	}

	fmt.Fprintln(w)
	total := len(r.Slides)
	stats := fmt.Sprintf("(%d/%d slides in %v)", r.Succeeded(), total, r.Duration.Round(time.Millisecond))
	switch {
	case r.Succeeded() == total:
		ok := color.New(color.FgGreen, color.Bold)
		ok.Fprintf(w, "━━━ Batch Complete ")
		dim.Fprint(w, stats)
		ok.Fprintln(w, " ━━━")
	case r.Succeeded() > 0:
		warn := color.New(color.FgYellow, color.Bold)
		warn.Fprintf(w, "━━━ Batch Partial ")
		dim.Fprint(w, stats)
		warn.Fprintln(w, " ━━━")
	default:
		fail := color.New(color.FgRed, color.Bold)
		fail.Fprintf(w, "━━━ Batch Failed ")
		dim.Fprint(w, stats)
		fail.Fprintln(w, " ━━━")
	}
}

// printProviderMetrics prints the running counters for one provider.
func printProviderMetrics(w io.Writer, name string, m metrics.ProviderMetrics) {
	color.New(color.FgHiBlack).Fprintf(w,
		"  %s: %d attempts, %d rate-limited retries, %.0f%% success, avg %v per slide\n",
		name, m.Attempts, m.RateLimitedRetries, m.SuccessRate, m.AvgSlideLatency.Round(time.Millisecond))
}

// printHistory prints stored batches, newest first.
func printHistory(w io.Writer, batches []db.BatchRecord) {
	if len(batches) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, "No batches recorded yet.")
		return
	}
	for _, b := range batches {
		statusColor(b.Status).Fprintf(w, "  %-8s", b.Status)
		fmt.Fprintf(w, " %s  %-30s %-13s %d/%d", b.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(b.Topic, 30), b.Provider, b.Succeeded, b.SlideCount)
		color.New(color.FgHiBlack).Fprintf(w, "  %s\n", b.ID)
	}
}

// printBatch prints one stored batch with its slides.
func printBatch(w io.Writer, b *db.BatchRecord) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "━━━ %s ━━━\n", b.Topic)
	fmt.Fprintf(w, "  id:       %s\n", b.ID)
	fmt.Fprintf(w, "  provider: %s\n", b.Provider)
	if b.Seed != nil {
		fmt.Fprintf(w, "  seed:     %d\n", *b.Seed)
	}
	fmt.Fprintf(w, "  created:  %s\n", b.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "  duration: %v\n", time.Duration(b.DurationMS)*time.Millisecond)
	fmt.Fprint(w, "  status:   ")
	statusColor(b.Status).Fprintf(w, "%s (%d/%d)\n", b.Status, b.Succeeded, b.SlideCount)
	fmt.Fprintln(w)
	for _, s := range b.Slides {
		if s.Status == db.SlideStatusSuccess {
			color.New(color.FgGreen).Fprintf(w, "  ✓ slide %d", s.SlideNumber)
			color.New(color.FgHiBlack).Fprintf(w, " - %s\n", s.Path)
			continue
		}
		color.New(color.FgRed).Fprintf(w, "  ✗ slide %d", s.SlideNumber)
		color.New(color.FgHiBlack).Fprintf(w, " - %s after %d attempts\n", s.FailureClass, s.Attempts)
		if s.ErrorMessage != "" {
			color.New(color.FgRed).Fprintf(w, "    └─ %s\n", s.ErrorMessage)
		}
	}
}

func statusColor(status string) *color.Color {
	switch status {
	case db.BatchStatusComplete:
		return color.New(color.FgGreen)
	case db.BatchStatusPartial:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
