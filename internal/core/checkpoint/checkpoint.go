// Package checkpoint tracks the processing watermark for each batch job.
//
// The checkpoint acts as a bookmark that remembers how far a job has
// gotten: the highest record id whose write-back has been durably
// committed, plus cumulative run statistics. A crash or restart resumes
// from it without reprocessing completed records.
//
// All writes for a job go through a single Manager instance; the Manager
// serializes them, and the repository guards the watermark so it only ever
// advances (an explicit operator Reset is the one exception).
package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/infra/storage"
	"github.com/vietddude/classifier/internal/observability/metrics"
)

// Manager fronts the job state store with write serialization.
type Manager struct {
	repo storage.JobStateRepository
	mu   sync.Mutex
}

// NewManager creates a new checkpoint manager.
func NewManager(repo storage.JobStateRepository) *Manager {
	return &Manager{repo: repo}
}

// Get retrieves the current state for a job. Nil means the job never ran.
func (m *Manager) Get(ctx context.Context, jobName string) (*domain.JobState, error) {
	return m.repo.Get(ctx, jobName)
}

// Advance merges the stats delta and moves the watermark to lastID if it is
// strictly greater than the stored value. Out-of-order or duplicate calls
// never regress the watermark.
func (m *Manager) Advance(ctx context.Context, jobName string, lastID int64, delta domain.JobStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Advance(ctx, jobName, lastID, delta); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}

	js, err := m.repo.Get(ctx, jobName)
	if err == nil && js != nil && js.LastProcessedID != nil {
		metrics.CheckpointID.WithLabelValues(jobName).Set(float64(*js.LastProcessedID))
	}
	return nil
}

// SetStatus sets the job status.
func (m *Manager) SetStatus(ctx context.Context, jobName string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo.SetStatus(ctx, jobName, status)
}

// Reset clears the watermark and zeroes stats. Operator action only.
func (m *Manager) Reset(ctx context.Context, jobName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo.Reset(ctx, jobName)
}
