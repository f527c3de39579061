package domain

import "time"

// Record is one unit of input data awaiting classification.
type Record struct {
	ID                 int64        `json:"id"                  db:"id"`
	ConversationNumber string       `json:"conversation_number" db:"conversation_number"`
	Content            string       `json:"content"             db:"content"`
	Status             RecordStatus `json:"status"              db:"status"`
	ProcessingAttempts int          `json:"processing_attempts" db:"processing_attempts"`
	ErrorSummary       string       `json:"error_summary"       db:"error_summary"`
	ResultID           *int64       `json:"result_id"           db:"result_id"`
	LastProcessedAt    *time.Time   `json:"last_processed_at"   db:"last_processed_at"`
	CreatedAt          time.Time    `json:"created_at"          db:"created_at"`
}

type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusProcessing RecordStatus = "processing"
	RecordStatusProcessed  RecordStatus = "processed"
	RecordStatusFailed     RecordStatus = "failed"
)

// CanTransition reports whether a record status transition is allowed.
// Records only move pending → processing → {processed, failed}; a failed
// record is only reset to pending by an explicit operator action, never by
// the pipeline itself.
func (s RecordStatus) CanTransition(to RecordStatus) bool {
	switch s {
	case RecordStatusPending:
		return to == RecordStatusProcessing
	case RecordStatusProcessing:
		return to == RecordStatusProcessed || to == RecordStatusFailed
	default:
		return false
	}
}
