package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/classifier/internal/core/checkpoint"
	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/infra/storage/memory"
	"github.com/vietddude/classifier/internal/job"
)

type stubPinger struct{ err error }

func (p *stubPinger) Health(context.Context) error { return p.err }

type noopClassifier struct{}

func (noopClassifier) Classify(context.Context, *domain.Record) (domain.Classification, int, error) {
	return domain.Classification{}, 0, nil
}

func newMonitor(t *testing.T, pinger StorePinger) (*Monitor, *checkpoint.Manager) {
	t.Helper()
	store := memory.NewMemoryStorage()
	cp := checkpoint.NewManager(memory.NewJobStateRepo(store))
	o := job.New(job.Config{JobName: "health"}, memory.NewRecordRepo(store), cp, noopClassifier{}, nil)
	return NewMonitor(pinger, cp, o, "health"), cp
}

func TestCheckHealth_Healthy(t *testing.T) {
	m, cp := newMonitor(t, &stubPinger{})
	if err := cp.Advance(t.Context(), "health", 42, domain.JobStats{RecordsProcessed: 42}); err != nil {
		t.Fatalf("advance: %v", err)
	}

	report := m.CheckHealth(t.Context())
	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.LastProcessedID == nil || *report.LastProcessedID != 42 {
		t.Errorf("expected checkpoint 42 in report, got %v", report.LastProcessedID)
	}
	if report.Phase != string(job.PhaseIdle) {
		t.Errorf("expected idle phase, got %s", report.Phase)
	}
}

func TestCheckHealth_StoreDownIsCritical(t *testing.T) {
	m, _ := newMonitor(t, &stubPinger{err: errors.New("connection refused")})

	report := m.CheckHealth(t.Context())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
}

func TestCheckHealth_ErroredJobIsDegraded(t *testing.T) {
	m, cp := newMonitor(t, &stubPinger{})
	if err := cp.SetStatus(t.Context(), "health", domain.JobStatusError); err != nil {
		t.Fatalf("set status: %v", err)
	}

	report := m.CheckHealth(t.Context())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
}

func TestHealthEndpoint(t *testing.T) {
	m, _ := newMonitor(t, &stubPinger{err: errors.New("down")})
	s := NewServer(m, 0)

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 503 {
		t.Errorf("expected 503 when store is down, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["status"] != string(StatusCritical) {
		t.Errorf("expected critical status in body, got %q", body["status"])
	}
}
