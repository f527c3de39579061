package checkpoint

import (
	"context"
	"sync"
	"testing"

	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/infra/storage/memory"
)

func newManager() (*Manager, *memory.JobStateRepo) {
	repo := memory.NewJobStateRepo(memory.NewMemoryStorage())
	return NewManager(repo), repo
}

func TestAdvanceMonotonicUnderConcurrency(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	ids := []int64{5, 12, 3, 40, 22, 40, 1, 17}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if err := m.Advance(ctx, "classify", id, domain.JobStats{RecordsProcessed: 1}); err != nil {
				t.Errorf("Advance(%d) failed: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	js, err := m.Get(ctx, "classify")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if js.LastProcessedID == nil || *js.LastProcessedID != 40 {
		t.Errorf("watermark = %v, want 40 regardless of arrival order", js.LastProcessedID)
	}
	if js.Stats.RecordsProcessed != int64(len(ids)) {
		t.Errorf("records_processed = %d, want %d", js.Stats.RecordsProcessed, len(ids))
	}
}

func TestStatusLifecycle(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	for _, status := range []domain.JobStatus{
		domain.JobStatusRunning,
		domain.JobStatusCompleted,
		domain.JobStatusError,
	} {
		if err := m.SetStatus(ctx, "classify", status); err != nil {
			t.Fatalf("SetStatus(%s) failed: %v", status, err)
		}
		js, _ := m.Get(ctx, "classify")
		if js.Status != status {
			t.Errorf("status = %s, want %s", js.Status, status)
		}
	}
}

func TestResetClearsWatermarkThenAdvances(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_ = m.Advance(ctx, "classify", 90, domain.JobStats{Successful: 9})
	if err := m.Reset(ctx, "classify"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	// After a reset, a lower id is a fresh start, not a regression.
	if err := m.Advance(ctx, "classify", 4, domain.JobStats{Successful: 1}); err != nil {
		t.Fatalf("Advance after reset failed: %v", err)
	}
	js, _ := m.Get(ctx, "classify")
	if js.LastProcessedID == nil || *js.LastProcessedID != 4 {
		t.Errorf("watermark = %v, want 4", js.LastProcessedID)
	}
	if js.Stats.Successful != 1 {
		t.Errorf("successful = %d, want 1 after reset", js.Stats.Successful)
	}
}
