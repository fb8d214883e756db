package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrBatchNotFound is returned by QueryBatch for an unknown id.
var ErrBatchNotFound = errors.New("db: batch not found")

// Batch status values.
const (
	BatchStatusComplete = "complete"
	BatchStatusPartial  = "partial"
	BatchStatusFailed   = "failed"
)

// Slide status values.
const (
	SlideStatusSuccess = "success"
	SlideStatusFailed  = "failed"
)

// SlideRecord is one row of slide_results.
type SlideRecord struct {
	BatchID      string `json:"-"`
	SlideNumber  int    `json:"slide_number"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	FailureClass string `json:"failure_class,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Path         string `json:"path,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// BatchRecord is one row of batches, optionally with its slides.
type BatchRecord struct {
	ID         string        `json:"id"`
	Topic      string        `json:"topic"`
	Provider   string        `json:"provider"`
	Seed       *int64        `json:"seed,omitempty"`
	SlideCount int           `json:"slide_count"`
	Succeeded  int           `json:"succeeded"`
	Status     string        `json:"status"`
	DurationMS int64         `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
	Slides     []SlideRecord `json:"slides,omitempty"`
}

// BatchStatus derives a batch status from its success count.
func BatchStatus(succeeded, total int) string {
	switch {
	case total > 0 && succeeded == total:
		return BatchStatusComplete
	case succeeded > 0:
		return BatchStatusPartial
	default:
		return BatchStatusFailed
	}
}

// Repository reads and writes generation history. Writes go through the
// AsyncWriter when one is running and fall back to a synchronous insert
// when its buffer is full.
type Repository struct {
	db     *Database
	writer *AsyncWriter
}

// NewRepository creates a repository. writer may be nil.
func NewRepository(db *Database, writer *AsyncWriter) *Repository {
	return &Repository{db: db, writer: writer}
}

// RecordBatch stores rec and its slides.
func (r *Repository) RecordBatch(ctx context.Context, rec BatchRecord) error {
	if r.writer != nil && r.writer.Enqueue(rec) {
		return nil
	}
	return r.InsertBatch(ctx, rec)
}

// WriteHandler returns the handler an AsyncWriter uses to persist records.
func (r *Repository) WriteHandler() WriteHandler {
	return r.InsertBatch
}

// InsertBatch writes rec and its slides in one transaction.
func (r *Repository) InsertBatch(ctx context.Context, rec BatchRecord) error {
	conn, err := r.db.conn()
	if err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("db: batch id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Status == "" {
		rec.Status = BatchStatus(rec.Succeeded, rec.SlideCount)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (
			id, topic, provider, seed, slide_count, succeeded,
			status, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Topic, rec.Provider, nullInt64(rec.Seed), rec.SlideCount,
		rec.Succeeded, rec.Status, rec.DurationMS, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("db: failed to insert batch %s: %w", rec.ID, err)
	}

	for _, s := range rec.Slides {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO slide_results (
				batch_id, slide_number, status, attempts, failure_class,
				error_message, path, duration_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, s.SlideNumber, s.Status, s.Attempts, nullString(s.FailureClass),
			nullString(s.ErrorMessage), nullString(s.Path), s.DurationMS,
		)
		if err != nil {
			return fmt.Errorf("db: failed to insert slide %d of batch %s: %w", s.SlideNumber, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: failed to commit batch %s: %w", rec.ID, err)
	}
	return nil
}

const batchColumns = `id, topic, provider, seed, slide_count, succeeded, status, duration_ms, created_at`

// QueryRecentBatches returns the newest batches first, without slides.
func (r *Repository) QueryRecentBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("db: failed to query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		rec, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: error iterating batches: %w", err)
	}
	return out, nil
}

// QueryBatch returns one batch with its slides ordered by slide number.
func (r *Repository) QueryBatch(ctx context.Context, id string) (*BatchRecord, error) {
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}

	row := conn.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	rec, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT slide_number, status, attempts, COALESCE(failure_class, ''),
			   COALESCE(error_message, ''), COALESCE(path, ''), duration_ms
		FROM slide_results
		WHERE batch_id = ?
		ORDER BY slide_number`, id)
	if err != nil {
		return nil, fmt.Errorf("db: failed to query slides of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		s := SlideRecord{BatchID: id}
		if err := rows.Scan(&s.SlideNumber, &s.Status, &s.Attempts, &s.FailureClass,
			&s.ErrorMessage, &s.Path, &s.DurationMS); err != nil {
			return nil, fmt.Errorf("db: failed to scan slide row: %w", err)
		}
		rec.Slides = append(rec.Slides, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: error iterating slides: %w", err)
	}
	return &rec, nil
}

// CountBatches returns the number of stored batches.
func (r *Repository) CountBatches(ctx context.Context) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db: failed to count batches: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (BatchRecord, error) {
	var (
		rec       BatchRecord
		seed      sql.NullInt64
		createdAt int64
	)
	err := row.Scan(&rec.ID, &rec.Topic, &rec.Provider, &seed, &rec.SlideCount,
		&rec.Succeeded, &rec.Status, &rec.DurationMS, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("db: failed to scan batch row: %w", err)
	}
	if seed.Valid {
		v := seed.Int64
		rec.Seed = &v
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	return rec, nil
}

// nullString stores empty strings as NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
