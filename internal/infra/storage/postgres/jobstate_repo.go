package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/classifier/internal/core/domain"
)

// JobStateRepo implements storage.JobStateRepository using PostgreSQL.
type JobStateRepo struct {
	db *DB
}

// NewJobStateRepo creates a new PostgreSQL job state repository.
func NewJobStateRepo(db *DB) *JobStateRepo {
	return &JobStateRepo{db: db}
}

type jobStateRow struct {
	JobName          string        `db:"job_name"`
	Status           string        `db:"status"`
	LastProcessedID  sql.NullInt64 `db:"last_processed_id"`
	RecordsProcessed int64         `db:"records_processed"`
	Successful       int64         `db:"successful"`
	Failed           int64         `db:"failed"`
	Retried          int64         `db:"retried"`
	LastUpdated      time.Time     `db:"last_updated"`
}

func (r *jobStateRow) toDomain() *domain.JobState {
	js := &domain.JobState{
		JobName:     r.JobName,
		Status:      domain.JobStatus(r.Status),
		LastUpdated: r.LastUpdated,
		Stats: domain.JobStats{
			RecordsProcessed: r.RecordsProcessed,
			Successful:       r.Successful,
			Failed:           r.Failed,
			Retried:          r.Retried,
		},
	}
	if r.LastProcessedID.Valid {
		id := r.LastProcessedID.Int64
		js.LastProcessedID = &id
	}
	return js
}

// Get retrieves a job state by name. Returns nil when the job never ran.
func (r *JobStateRepo) Get(ctx context.Context, jobName string) (*domain.JobState, error) {
	query := `
		SELECT job_name, status, last_processed_id, records_processed, successful, failed, retried, last_updated
		FROM job_states
		WHERE job_name = $1
	`

	var row jobStateRow
	err := r.db.GetContext(ctx, &row, query, jobName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}
	return row.toDomain(), nil
}

// Advance merges the stats delta and moves the watermark, guarded by
// GREATEST so an out-of-order write can never move it backwards.
func (r *JobStateRepo) Advance(ctx context.Context, jobName string, lastID int64, delta domain.JobStats) error {
	query := `
		INSERT INTO job_states
			(job_name, status, last_processed_id, records_processed, successful, failed, retried, last_updated)
		VALUES ($1, 'running', $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (job_name) DO UPDATE SET
			last_processed_id = GREATEST(COALESCE(job_states.last_processed_id, 0), EXCLUDED.last_processed_id),
			records_processed = job_states.records_processed + EXCLUDED.records_processed,
			successful        = job_states.successful + EXCLUDED.successful,
			failed            = job_states.failed + EXCLUDED.failed,
			retried           = job_states.retried + EXCLUDED.retried,
			last_updated      = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, jobName, lastID,
		delta.RecordsProcessed, delta.Successful, delta.Failed, delta.Retried)
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}
	return nil
}

// SetStatus sets the job status, creating the row on first use.
func (r *JobStateRepo) SetStatus(ctx context.Context, jobName string, status domain.JobStatus) error {
	query := `
		INSERT INTO job_states (job_name, status, last_updated)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_name) DO UPDATE SET
			status = EXCLUDED.status,
			last_updated = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, jobName, string(status)); err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	return nil
}

// Reset clears the watermark and zeroes stats.
func (r *JobStateRepo) Reset(ctx context.Context, jobName string) error {
	query := `
		UPDATE job_states
		SET status = 'idle',
		    last_processed_id = NULL,
		    records_processed = 0,
		    successful = 0,
		    failed = 0,
		    retried = 0,
		    last_updated = NOW()
		WHERE job_name = $1
	`
	if _, err := r.db.ExecContext(ctx, query, jobName); err != nil {
		return fmt.Errorf("failed to reset job state: %w", err)
	}
	return nil
}

// List returns all job states, for the status command.
func (r *JobStateRepo) List(ctx context.Context) ([]*domain.JobState, error) {
	query := `
		SELECT job_name, status, last_processed_id, records_processed, successful, failed, retried, last_updated
		FROM job_states
		ORDER BY job_name
	`

	var rows []jobStateRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list job states: %w", err)
	}

	states := make([]*domain.JobState, 0, len(rows))
	for i := range rows {
		states = append(states, rows[i].toDomain())
	}
	return states, nil
}
