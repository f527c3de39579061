package domain

import "time"

// JobState holds the durable checkpoint for a named batch job.
type JobState struct {
	JobName         string    `json:"job_name"          db:"job_name"`
	Status          JobStatus `json:"status"            db:"status"`
	LastProcessedID *int64    `json:"last_processed_id" db:"last_processed_id"`
	Stats           JobStats  `json:"stats"`
	LastUpdated     time.Time `json:"last_updated"      db:"last_updated"`
}

type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// JobStats are cumulative counters across the job's history.
type JobStats struct {
	RecordsProcessed int64 `json:"records_processed" db:"records_processed"`
	Successful       int64 `json:"successful"        db:"successful"`
	Failed           int64 `json:"failed"            db:"failed"`
	Retried          int64 `json:"retried"           db:"retried"`
}

// Add merges a delta into the counters.
func (s *JobStats) Add(d JobStats) {
	s.RecordsProcessed += d.RecordsProcessed
	s.Successful += d.Successful
	s.Failed += d.Failed
	s.Retried += d.Retried
}
