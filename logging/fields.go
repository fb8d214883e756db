package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field keys, kept consistent so log queries work across
// packages.
const (
	FieldBatchID  = "batch_id"
	FieldSlide    = "slide"
	FieldProvider = "provider"
	FieldAttempt  = "attempt"
	FieldClass    = "failure_class"
	FieldSeed     = "seed"
)

// SlideFields returns the fields identifying one generation attempt.
func SlideFields(slide int, provider string, attempt int) []zap.Field {
	return []zap.Field{
		zap.Int(FieldSlide, slide),
		zap.String(FieldProvider, provider),
		zap.Int(FieldAttempt, attempt),
	}
}

// BatchSummary is logged once when a batch completes.
type BatchSummary struct {
	BatchID   string
	Topic     string
	Provider  string
	Slides    int
	Succeeded int
	Failed    []int
	Seed      *int64
	Duration  time.Duration
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s BatchSummary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(FieldBatchID, s.BatchID)
	enc.AddString("topic", s.Topic)
	enc.AddString(FieldProvider, s.Provider)
	enc.AddInt("slides", s.Slides)
	enc.AddInt("succeeded", s.Succeeded)
	if len(s.Failed) > 0 {
		if err := enc.AddArray("failed_slides", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
			for _, n := range s.Failed {
				arr.AppendInt(n)
			}
			return nil
		})); err != nil {
			return err
		}
	}
	if s.Seed != nil {
		enc.AddInt64(FieldSeed, *s.Seed)
	}
	enc.AddDuration("duration", s.Duration)
	return nil
}

// BatchField wraps a summary as a single "batch" field.
func BatchField(s BatchSummary) zap.Field {
	return zap.Object("batch", s)
}
