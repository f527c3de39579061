package domain

import "time"

// FailedRecord is an inspection-queue entry for a record that exhausted
// classification. The record store keeps the authoritative failed status;
// this entry only exists so operators can review failures without querying
// the store.
type FailedRecord struct {
	RecordID int64     `json:"record_id"`
	JobName  string    `json:"job_name"`
	Summary  string    `json:"summary"`
	FailedAt time.Time `json:"failed_at"`
}
