// Package output persists finished slide images as PNG files.
package output

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// TimestampLayout formats batch timestamps in file and folder names.
const TimestampLayout = "20060102_150405"

const (
	maxTopicRunes  = 30
	maxFolderRunes = 20
	fallbackTopic  = "story"
)

// Frame is one slide image ready to be written. A nil Image means the
// slide has no output.
type Frame struct {
	SlideNumber int
	Image       image.Image
}

// FrameError is a failure to write one frame.
type FrameError struct {
	SlideNumber int
	Err         error
}

func (e *FrameError) Error() string {
	return e.Err.Error()
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// FailedFrames maps slide numbers to the FrameErrors carried by an error
// from Write. It returns nil when err holds none.
func FailedFrames(err error) map[int]error {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	var failed map[int]error
	for _, e := range errs {
		var fe *FrameError
		if errors.As(e, &fe) {
			if failed == nil {
				failed = make(map[int]error)
			}
			failed[fe.SlideNumber] = fe.Err
		}
	}
	return failed
}

// Writer encodes frames to disk. The zero value is not usable; use
// NewWriter.
type Writer struct {
	encoder  *png.Encoder
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// WriterConfig configures a Writer.
type WriterConfig struct {
	// Compression is the PNG compression level
	Compression png.CompressionLevel
	// DirPerm is used when creating the output directory
	DirPerm os.FileMode
	// FilePerm is applied to written files
	FilePerm os.FileMode
}

// DefaultWriterConfig returns default compression and permissions.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Compression: png.DefaultCompression,
		DirPerm:     0755,
		FilePerm:    0644,
	}
}

// NewWriter creates a Writer with default configuration.
func NewWriter() *Writer {
	return NewWriterWithConfig(DefaultWriterConfig())
}

// NewWriterWithConfig creates a Writer with custom configuration.
func NewWriterWithConfig(cfg WriterConfig) *Writer {
	if cfg.DirPerm == 0 {
		cfg.DirPerm = 0755
	}
	if cfg.FilePerm == 0 {
		cfg.FilePerm = 0644
	}
	return &Writer{
		encoder:  &png.Encoder{CompressionLevel: cfg.Compression},
		dirPerm:  cfg.DirPerm,
		filePerm: cfg.FilePerm,
	}
}

// Write stores every frame that has an image and returns the written paths
// in input order. Frames that fail to encode are reported as FrameErrors in
// the joined error; the paths of the others are still returned. An error
// that is not a FrameError means dir itself could not be created.
func (w *Writer) Write(frames []Frame, dir, topic string, ts time.Time) ([]string, error) {
	if err := w.EnsureDir(dir); err != nil {
		return nil, err
	}

	var (
		paths []string
		errs  []error
	)
	for _, f := range frames {
		if f.Image == nil {
			continue
		}
		path, err := w.WriteFrame(f, dir, topic, ts)
		if err != nil {
			errs = append(errs, &FrameError{SlideNumber: f.SlideNumber, Err: err})
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

// EnsureDir creates dir and any missing parents.
func (w *Writer) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, w.dirPerm); err != nil {
		return fmt.Errorf("output: failed to create %s: %w", dir, err)
	}
	return nil
}

// WriteFrame encodes one frame to dir. dir must exist.
func (w *Writer) WriteFrame(f Frame, dir, topic string, ts time.Time) (string, error) {
	if f.Image == nil {
		return "", fmt.Errorf("output: slide %d has no image", f.SlideNumber)
	}
	path := filepath.Join(dir, FileName(topic, ts, f.SlideNumber))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.filePerm)
	if err != nil {
		return "", fmt.Errorf("output: failed to create %s: %w", path, err)
	}
	if err := w.encoder.Encode(file, f.Image); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("output: failed to encode slide %d: %w", f.SlideNumber, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("output: failed to close %s: %w", path, err)
	}
	return path, nil
}

// FileName returns "{topic}_{timestamp}_slide{N}.png".
func FileName(topic string, ts time.Time, slide int) string {
	return fmt.Sprintf("%s_%s_slide%d.png", SanitizeTopic(topic), ts.Format(TimestampLayout), slide)
}

// StoryFolder returns the per-batch folder name used by the HTTP layer.
func StoryFolder(topic string, ts time.Time) string {
	return fmt.Sprintf("%s_%s", sanitize(topic, maxFolderRunes), ts.Format(TimestampLayout))
}

// SanitizeTopic makes topic safe for a file name: anything other than a
// letter, digit, space, '-' or '_' becomes '_', the result is cut to 30
// runes and trimmed. An empty result becomes "story".
func SanitizeTopic(topic string) string {
	return sanitize(topic, maxTopicRunes)
}

func sanitize(topic string, maxRunes int) string {
	runes := make([]rune, 0, maxRunes)
	for _, r := range topic {
		if len(runes) == maxRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			runes = append(runes, r)
		} else {
			runes = append(runes, '_')
		}
	}
	out := strings.TrimSpace(string(runes))
	if out == "" {
		return fallbackTopic
	}
	return out
}
