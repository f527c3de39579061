// Package health provides pipeline health monitoring and status reporting.
package health

import (
	"context"

	"github.com/vietddude/classifier/internal/core/checkpoint"
	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/job"
)

// SystemStatus represents the overall health state of the pipeline.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full pipeline health report.
type Report struct {
	SystemStatus     SystemStatus `json:"system_status"`
	Store            string       `json:"store"`
	JobName          string       `json:"job_name"`
	JobStatus        string       `json:"job_status"`
	Phase            string       `json:"phase"`
	LastProcessedID  *int64       `json:"last_processed_id"`
	RecordsProcessed int64        `json:"records_processed"`
	Failed           int64        `json:"failed"`
}

// StorePinger reports record store connectivity.
type StorePinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates store connectivity, job state and orchestrator phase.
type Monitor struct {
	store        StorePinger
	checkpoint   *checkpoint.Manager
	orchestrator *job.Orchestrator
	jobName      string
}

// NewMonitor creates a health monitor. store may be nil when running on the
// in-memory store.
func NewMonitor(store StorePinger, cp *checkpoint.Manager, o *job.Orchestrator, jobName string) *Monitor {
	return &Monitor{
		store:        store,
		checkpoint:   cp,
		orchestrator: o,
		jobName:      jobName,
	}
}

// CheckHealth builds a point-in-time report. A store that cannot be reached
// is critical; an errored job is degraded.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	report := Report{
		SystemStatus: StatusHealthy,
		Store:        "ok",
		JobName:      m.jobName,
		Phase:        string(m.orchestrator.Phase()),
	}

	if m.store != nil {
		if err := m.store.Health(ctx); err != nil {
			report.Store = err.Error()
			report.SystemStatus = StatusCritical
		}
	}

	state, err := m.checkpoint.Get(ctx, m.jobName)
	if err != nil {
		report.JobStatus = "unknown"
		if report.SystemStatus == StatusHealthy {
			report.SystemStatus = StatusDegraded
		}
		return report
	}
	if state == nil {
		report.JobStatus = string(domain.JobStatusIdle)
		return report
	}

	report.JobStatus = string(state.Status)
	report.LastProcessedID = state.LastProcessedID
	report.RecordsProcessed = state.Stats.RecordsProcessed
	report.Failed = state.Stats.Failed
	if state.Status == domain.JobStatusError && report.SystemStatus == StatusHealthy {
		report.SystemStatus = StatusDegraded
	}
	return report
}
