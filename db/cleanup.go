package db

import (
	"context"
	"fmt"
	"time"
)

// PruneResult reports what a retention pass removed.
type PruneResult struct {
	BatchesDeleted int64
	SlidesDeleted  int64
	Duration       time.Duration
}

// Prune deletes batches created before cutoff along with their slide rows.
// Both deletes share one transaction.
func (d *Database) Prune(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	start := time.Now()
	var result PruneResult

	conn, err := d.conn()
	if err != nil {
		return result, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("db: failed to begin prune: %w", err)
	}
	defer tx.Rollback()

	ms := cutoff.UnixMilli()
	res, err := tx.ExecContext(ctx,
		`DELETE FROM slide_results WHERE batch_id IN (SELECT id FROM batches WHERE created_at < ?)`, ms)
	if err != nil {
		return result, fmt.Errorf("db: failed to prune slide results: %w", err)
	}
	result.SlidesDeleted, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM batches WHERE created_at < ?`, ms)
	if err != nil {
		return result, fmt.Errorf("db: failed to prune batches: %w", err)
	}
	result.BatchesDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("db: failed to commit prune: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

// PruneSchedulerConfig configures StartPruneScheduler.
type PruneSchedulerConfig struct {
	// Retention is how long batches are kept
	Retention time.Duration
	// Interval is how often a pass runs
	Interval time.Duration
	// OnPrune is called after each pass (optional)
	OnPrune func(PruneResult, error)
}

// DefaultPruneSchedulerConfig keeps 30 days and runs daily.
func DefaultPruneSchedulerConfig() PruneSchedulerConfig {
	return PruneSchedulerConfig{
		Retention: 30 * 24 * time.Hour,
		Interval:  24 * time.Hour,
	}
}

// StartPruneScheduler runs a pass immediately and then every Interval
// until ctx is cancelled. A non-positive Retention disables it.
func (d *Database) StartPruneScheduler(ctx context.Context, config PruneSchedulerConfig) {
	if config.Retention <= 0 {
		return
	}
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}

	pass := func() {
		result, err := d.Prune(ctx, time.Now().Add(-config.Retention))
		if config.OnPrune != nil {
			config.OnPrune(result, err)
		}
	}

	go func() {
		pass()
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pass()
			}
		}
	}()
}
