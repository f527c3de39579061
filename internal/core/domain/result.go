package domain

import "time"

// Classification is the structured output the model must produce for a
// single conversation.
type Classification struct {
	Categorization string `json:"categorization" db:"categorization"`
	Intent         string `json:"intent"         db:"intent"`
	Topic          string `json:"topic"          db:"topic"`
	Sentiment      string `json:"sentiment"      db:"sentiment"`
}

// ClassificationResult is the persisted outcome of a successful
// classification. One per record, immutable once written.
type ClassificationResult struct {
	ID             int64          `json:"id"              db:"id"`
	RecordID       int64          `json:"record_id"       db:"record_id"`
	Classification Classification `json:"classification"`
	BatchJobID     string         `json:"batch_job_id"    db:"batch_job_id"`
	AttemptCount   int            `json:"attempt_count"   db:"attempt_count"`
	ProcessedAt    time.Time      `json:"processed_at"    db:"processed_at"`
}
