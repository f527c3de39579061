package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/classifier/internal/core/domain"
)

var (
	// ErrRecordNotFound is returned when a record doesn't exist.
	ErrRecordNotFound = errors.New("record not found")
)

// RecordRepository is the sole writer of record lifecycle state and of
// classification results.
type RecordRepository interface {
	// FetchPending returns up to limit pending records ordered by id
	// ascending, without mutating their status. An empty slice means the
	// store is drained.
	FetchPending(ctx context.Context, limit int) ([]*domain.Record, error)

	// MarkProcessing transitions a pending record to processing and bumps
	// its attempt counter. Calling it on a non-pending record is a no-op.
	MarkProcessing(ctx context.Context, id int64) error

	// MarkProcessed inserts the result, links it and transitions the record
	// to processed. The result insert happens before the status update, so
	// a crash in between leaves the record processing, never falsely
	// processed. Idempotent: a second call with the same result neither
	// duplicates the result row nor changes the linked result id.
	MarkProcessed(ctx context.Context, id int64, result *domain.ClassificationResult) error

	// MarkFailed transitions a processing record to failed and stores the
	// error summary verbatim. Idempotent.
	MarkFailed(ctx context.Context, id int64, summary string) error

	// FindStalled returns records stuck in processing longer than olderThan.
	// These are write-back interruptions an operator must inspect; the
	// pipeline never resurrects them on its own.
	FindStalled(ctx context.Context, olderThan time.Duration) ([]*domain.Record, error)

	// ResetFailed transitions failed records back to pending. Operator
	// action only. Returns the number of records reset.
	ResetFailed(ctx context.Context) (int64, error)
}

// JobStateRepository persists per-job checkpoints.
type JobStateRepository interface {
	// Get returns the job state, or nil when the job has never run.
	Get(ctx context.Context, jobName string) (*domain.JobState, error)

	// Advance merges the stats delta into cumulative stats and moves the
	// watermark to lastID only if strictly greater than the stored value,
	// so a late or duplicate write can never regress the checkpoint.
	Advance(ctx context.Context, jobName string, lastID int64, delta domain.JobStats) error

	// SetStatus sets the job status, creating the state row if needed.
	SetStatus(ctx context.Context, jobName string, status domain.JobStatus) error

	// Reset clears the watermark and zeroes stats. Operator action only.
	Reset(ctx context.Context, jobName string) error
}
