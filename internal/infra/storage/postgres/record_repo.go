package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/classifier/internal/core/domain"
)

// RecordRepo implements storage.RecordRepository using PostgreSQL.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new PostgreSQL record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

type recordRow struct {
	ID                 int64          `db:"id"`
	ConversationNumber string         `db:"conversation_number"`
	Content            string         `db:"content"`
	Status             string         `db:"status"`
	ProcessingAttempts int            `db:"processing_attempts"`
	ErrorSummary       sql.NullString `db:"error_summary"`
	ResultID           sql.NullInt64  `db:"result_id"`
	LastProcessedAt    sql.NullTime   `db:"last_processed_at"`
	CreatedAt          time.Time      `db:"created_at"`
}

func (r *recordRow) toDomain() *domain.Record {
	rec := &domain.Record{
		ID:                 r.ID,
		ConversationNumber: r.ConversationNumber,
		Content:            r.Content,
		Status:             domain.RecordStatus(r.Status),
		ProcessingAttempts: r.ProcessingAttempts,
		CreatedAt:          r.CreatedAt,
	}
	if r.ErrorSummary.Valid {
		rec.ErrorSummary = r.ErrorSummary.String
	}
	if r.ResultID.Valid {
		id := r.ResultID.Int64
		rec.ResultID = &id
	}
	if r.LastProcessedAt.Valid {
		t := r.LastProcessedAt.Time
		rec.LastProcessedAt = &t
	}
	return rec
}

const recordColumns = `id, conversation_number, content, status, processing_attempts, error_summary, result_id, last_processed_at, created_at`

// FetchPending returns up to limit pending records, oldest id first.
// Status is not touched here; the processing transition happens at dispatch.
func (r *RecordRepo) FetchPending(ctx context.Context, limit int) ([]*domain.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE status = 'pending'
		ORDER BY id ASC
		LIMIT $1
	`

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch pending records: %w", err)
	}

	records := make([]*domain.Record, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toDomain())
	}
	return records, nil
}

// MarkProcessing transitions a pending record to processing.
func (r *RecordRepo) MarkProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE records
		SET status = 'processing',
		    processing_attempts = processing_attempts + 1,
		    last_processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark record %d processing: %w", id, err)
	}
	return nil
}

// MarkProcessed inserts the classification result and flips the record to
// processed in one transaction, result insert first. The unique constraint
// on classification_results.record_id makes repeat calls reuse the existing
// result row instead of duplicating it.
func (r *RecordRepo) MarkProcessed(ctx context.Context, id int64, result *domain.ClassificationResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO classification_results
			(record_id, intent, topic, sentiment, categorization, batch_job_id, attempt_count, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (record_id) DO UPDATE SET record_id = EXCLUDED.record_id
		RETURNING id
	`

	var resultID int64
	err = tx.QueryRowContext(ctx, insert,
		id,
		result.Classification.Intent,
		result.Classification.Topic,
		result.Classification.Sentiment,
		result.Classification.Categorization,
		result.BatchJobID,
		result.AttemptCount,
	).Scan(&resultID)
	if err != nil {
		return fmt.Errorf("failed to insert classification result: %w", err)
	}

	update := `
		UPDATE records
		SET status = 'processed',
		    result_id = $2,
		    error_summary = NULL,
		    last_processed_at = NOW()
		WHERE id = $1 AND status IN ('processing', 'processed')
	`
	if _, err := tx.ExecContext(ctx, update, id, resultID); err != nil {
		return fmt.Errorf("failed to mark record %d processed: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit processed transition: %w", err)
	}
	result.ID = resultID
	result.RecordID = id
	return nil
}

// MarkFailed transitions a processing record to failed, storing the error
// summary verbatim for operator inspection.
func (r *RecordRepo) MarkFailed(ctx context.Context, id int64, summary string) error {
	query := `
		UPDATE records
		SET status = 'failed',
		    error_summary = $2,
		    last_processed_at = NOW()
		WHERE id = $1 AND status IN ('processing', 'failed')
	`
	if _, err := r.db.ExecContext(ctx, query, id, summary); err != nil {
		return fmt.Errorf("failed to mark record %d failed: %w", id, err)
	}
	return nil
}

// FindStalled returns records stuck in processing since before the cutoff.
// A record here means a write-back was interrupted; it is surfaced for
// operator review, never silently requeued.
func (r *RecordRepo) FindStalled(ctx context.Context, olderThan time.Duration) ([]*domain.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE status = 'processing' AND last_processed_at < $1
		ORDER BY id ASC
	`

	var rows []recordRow
	cutoff := time.Now().Add(-olderThan)
	if err := r.db.SelectContext(ctx, &rows, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to find stalled records: %w", err)
	}

	records := make([]*domain.Record, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toDomain())
	}
	return records, nil
}

// ResetFailed flips failed records back to pending. Operator action only.
func (r *RecordRepo) ResetFailed(ctx context.Context) (int64, error) {
	query := `
		UPDATE records
		SET status = 'pending', error_summary = NULL
		WHERE status = 'failed'
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to reset failed records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
