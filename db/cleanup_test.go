package db

import (
	"context"
	"testing"
	"time"
)

func TestPrune(t *testing.T) {
	d := openTestDB(t)
	repo := NewRepository(d, nil)
	ctx := context.Background()
	now := time.Now()

	old := sampleBatch("old", now.Add(-40*24*time.Hour))
	fresh := sampleBatch("fresh", now.Add(-time.Hour))
	for _, rec := range []BatchRecord{old, fresh} {
		if err := repo.InsertBatch(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	result, err := d.Prune(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if result.BatchesDeleted != 1 || result.SlidesDeleted != 3 {
		t.Errorf("result = %+v, want 1 batch and 3 slides", result)
	}

	if _, err := repo.QueryBatch(ctx, "fresh"); err != nil {
		t.Errorf("fresh batch should survive: %v", err)
	}
	var orphans int
	d.DB().QueryRow(`SELECT COUNT(*) FROM slide_results WHERE batch_id = 'old'`).Scan(&orphans)
	if orphans != 0 {
		t.Errorf("%d orphan slide rows remain", orphans)
	}
}

func TestStartPruneScheduler(t *testing.T) {
	d := openTestDB(t)
	repo := NewRepository(d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := repo.InsertBatch(ctx, sampleBatch("stale", time.Now().Add(-48*time.Hour))); err != nil {
		t.Fatal(err)
	}

	done := make(chan PruneResult, 1)
	d.StartPruneScheduler(ctx, PruneSchedulerConfig{
		Retention: 24 * time.Hour,
		Interval:  time.Hour,
		OnPrune: func(r PruneResult, err error) {
			if err != nil {
				t.Errorf("prune error: %v", err)
			}
			select {
			case done <- r:
			default:
			}
		},
	})

	select {
	case r := <-done:
		if r.BatchesDeleted != 1 {
			t.Errorf("BatchesDeleted = %d, want 1", r.BatchesDeleted)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial prune pass did not run")
	}
}

func TestStartPruneScheduler_DisabledWithoutRetention(t *testing.T) {
	d := openTestDB(t)
	called := false
	d.StartPruneScheduler(context.Background(), PruneSchedulerConfig{
		OnPrune: func(PruneResult, error) { called = true },
	})
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Error("scheduler should not run without retention")
	}
}
