package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/classifier/internal/core/checkpoint"
	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/infra/storage/memory"
	"github.com/vietddude/classifier/internal/retry"
)

// stubClassifier returns canned results per record id.
type stubClassifier struct {
	mu       sync.Mutex
	results  map[int64]stubResult
	fallback stubResult
	calls    int
}

type stubResult struct {
	classification domain.Classification
	attempts       int
	err            error
}

func (s *stubClassifier) Classify(_ context.Context, rec *domain.Record) (domain.Classification, int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if r, ok := s.results[rec.ID]; ok {
		return r.classification, r.attempts, r.err
	}
	return s.fallback.classification, s.fallback.attempts, s.fallback.err
}

// recordingSink captures failed-record pushes.
type recordingSink struct {
	mu     sync.Mutex
	pushed map[int64]string
}

func (s *recordingSink) Push(_ context.Context, recordID int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushed == nil {
		s.pushed = make(map[int64]string)
	}
	s.pushed[recordID] = summary
	return nil
}

func happyResult() stubResult {
	return stubResult{
		classification: domain.Classification{
			Categorization: "Billing Inquiry",
			Intent:         "billing",
			Topic:          "billing",
			Sentiment:      "neutral",
		},
		attempts: 1,
	}
}

var fastStoreRetry = retry.Config{
	MaxRetries: 1,
	BaseDelay:  time.Millisecond,
	MaxDelay:   time.Millisecond,
	Retryable:  []retry.Category{retry.CategoryTransient, retry.CategoryResource},
}

func newTestOrchestrator(store *memory.MemoryStorage, cfg Config, cl Classifier, sink FailedSink) (*Orchestrator, *checkpoint.Manager) {
	cp := checkpoint.NewManager(memory.NewJobStateRepo(store))
	o := New(cfg, memory.NewRecordRepo(store), cp, cl, sink)
	o.storeRetry = fastStoreRetry
	return o, cp
}

func TestRunDrainsStore(t *testing.T) {
	store := memory.NewMemoryStorage()
	for i := 0; i < 5; i++ {
		store.AddRecord(fmt.Sprintf("CONV-%d", i+1), fmt.Sprintf("query %d", i+1))
	}

	cl := &stubClassifier{fallback: happyResult()}
	o, cp := newTestOrchestrator(store, Config{JobName: "drain", BatchSize: 2, MaxConcurrent: 2}, cl, nil)

	summary, err := o.Run(t.Context())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Drained {
		t.Error("expected run to report store drained")
	}
	if summary.Batches != 3 {
		t.Errorf("expected 3 batches (2+2+1), got %d", summary.Batches)
	}
	if summary.Stats.RecordsProcessed != 5 || summary.Stats.Successful != 5 {
		t.Errorf("unexpected stats: %+v", summary.Stats)
	}
	if summary.Stats.Failed != 0 || summary.Stats.Retried != 0 {
		t.Errorf("expected no failures or retries, got %+v", summary.Stats)
	}

	for id := int64(1); id <= 5; id++ {
		rec, ok := store.Record(id)
		if !ok || rec.Status != domain.RecordStatusProcessed {
			t.Errorf("record %d: expected processed, got %+v", id, rec)
		}
		res, ok := store.Result(id)
		if !ok {
			t.Errorf("record %d: missing classification result", id)
			continue
		}
		if res.BatchJobID != summary.BatchJobID {
			t.Errorf("record %d: result batch job id = %q, want %q", id, res.BatchJobID, summary.BatchJobID)
		}
	}

	state, err := cp.Get(t.Context(), "drain")
	if err != nil || state == nil {
		t.Fatalf("checkpoint get: state=%v err=%v", state, err)
	}
	if state.LastProcessedID == nil || *state.LastProcessedID != 5 {
		t.Errorf("expected checkpoint at 5, got %v", state.LastProcessedID)
	}
	if state.Status != domain.JobStatusCompleted {
		t.Errorf("expected completed status, got %s", state.Status)
	}
}

func TestFailedRecordDoesNotAbortBatch(t *testing.T) {
	store := memory.NewMemoryStorage()
	store.AddRecord("CONV-1", "first")
	store.AddRecord("CONV-2", "second")
	store.AddRecord("CONV-3", "third")

	cl := &stubClassifier{
		fallback: happyResult(),
		results: map[int64]stubResult{
			2: {attempts: 1, err: errors.New("invalid request: model rejected payload")},
		},
	}
	sink := &recordingSink{}
	o, cp := newTestOrchestrator(store, Config{JobName: "partial", BatchSize: 10, MaxConcurrent: 3}, cl, sink)

	summary, err := o.Run(t.Context())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Stats.Successful != 2 || summary.Stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", summary.Stats)
	}

	rec, _ := store.Record(2)
	if rec.Status != domain.RecordStatusFailed {
		t.Fatalf("record 2: expected failed, got %s", rec.Status)
	}
	if rec.ErrorSummary != "invalid request: model rejected payload" {
		t.Errorf("error summary not stored verbatim: %q", rec.ErrorSummary)
	}

	sink.mu.Lock()
	got, pushed := sink.pushed[2]
	sink.mu.Unlock()
	if !pushed || got != "invalid request: model rejected payload" {
		t.Errorf("failed sink push missing or wrong: %q (pushed=%v)", got, pushed)
	}

	// A failed record is terminal and committed, so the checkpoint still
	// covers the whole batch.
	state, _ := cp.Get(t.Context(), "partial")
	if state.LastProcessedID == nil || *state.LastProcessedID != 3 {
		t.Errorf("expected checkpoint at 3, got %v", state.LastProcessedID)
	}
}

func TestRetriedSuccessCountsAsRetried(t *testing.T) {
	store := memory.NewMemoryStorage()
	store.AddRecord("CONV-1", "flaky upstream")

	cl := &stubClassifier{
		results: map[int64]stubResult{
			1: {classification: happyResult().classification, attempts: 3},
		},
	}
	o, _ := newTestOrchestrator(store, Config{JobName: "retried", BatchSize: 5, MaxConcurrent: 1}, cl, nil)

	summary, err := o.Run(t.Context())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Stats.Retried != 1 || summary.Stats.Successful != 1 {
		t.Errorf("unexpected stats: %+v", summary.Stats)
	}

	res, ok := store.Result(1)
	if !ok {
		t.Fatal("missing classification result")
	}
	if res.AttemptCount != 3 {
		t.Errorf("expected attempt count 3 on result, got %d", res.AttemptCount)
	}
}

func TestMaxIterationsStopsEarly(t *testing.T) {
	store := memory.NewMemoryStorage()
	for i := 0; i < 5; i++ {
		store.AddRecord(fmt.Sprintf("CONV-%d", i+1), "query")
	}

	cl := &stubClassifier{fallback: happyResult()}
	o, _ := newTestOrchestrator(store, Config{JobName: "capped", BatchSize: 2, MaxConcurrent: 2, MaxIterations: 1}, cl, nil)

	summary, err := o.Run(t.Context())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Batches != 1 {
		t.Errorf("expected 1 batch, got %d", summary.Batches)
	}

	pending, _ := memory.NewRecordRepo(store).FetchPending(t.Context(), 10)
	if len(pending) != 3 {
		t.Errorf("expected 3 records still pending, got %d", len(pending))
	}
}

func TestCancelledRunExitsCleanly(t *testing.T) {
	store := memory.NewMemoryStorage()
	store.AddRecord("CONV-1", "query")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	cl := &stubClassifier{fallback: happyResult()}
	o, cp := newTestOrchestrator(store, Config{JobName: "cancelled", BatchSize: 2, MaxConcurrent: 2}, cl, nil)

	summary, err := o.Run(ctx)
	if err != nil {
		t.Fatalf("expected clean exit on cancellation, got %v", err)
	}
	if summary.Stats.RecordsProcessed != 0 {
		t.Errorf("expected no records processed, got %+v", summary.Stats)
	}

	rec, _ := store.Record(1)
	if rec.Status != domain.RecordStatusPending {
		t.Errorf("undispatched record should stay pending, got %s", rec.Status)
	}

	// Completion status is still written on a detached context.
	state, _ := cp.Get(context.Background(), "cancelled")
	if state == nil || state.Status != domain.JobStatusCompleted {
		t.Errorf("expected completed status after clean interrupt, got %+v", state)
	}
}

// failingRecordRepo wraps the memory repo and fails every FetchPending.
type failingRecordRepo struct {
	*memory.RecordRepo
}

func (f *failingRecordRepo) FetchPending(context.Context, int) ([]*domain.Record, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureIsFatal(t *testing.T) {
	store := memory.NewMemoryStorage()
	store.AddRecord("CONV-1", "query")

	cp := checkpoint.NewManager(memory.NewJobStateRepo(store))
	cl := &stubClassifier{fallback: happyResult()}
	o := New(Config{JobName: "fatal", BatchSize: 2, MaxConcurrent: 2}, &failingRecordRepo{memory.NewRecordRepo(store)}, cp, cl, nil)
	o.storeRetry = fastStoreRetry

	_, err := o.Run(t.Context())
	if err == nil {
		t.Fatal("expected fatal error from store failure")
	}
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Errorf("expected store failure to be retried before going fatal, got %v", err)
	}

	state, _ := cp.Get(t.Context(), "fatal")
	if state == nil || state.Status != domain.JobStatusError {
		t.Errorf("expected error status, got %+v", state)
	}
}

func TestContinuousModePicksUpNewRecords(t *testing.T) {
	store := memory.NewMemoryStorage()
	store.AddRecord("CONV-1", "query")

	cl := &stubClassifier{fallback: happyResult()}
	o, _ := newTestOrchestrator(store, Config{
		JobName:       "continuous",
		BatchSize:     2,
		MaxConcurrent: 2,
		Continuous:    true,
		PollInterval:  10 * time.Millisecond,
	}, cl, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan *Summary, 1)
	go func() {
		summary, err := o.Run(ctx)
		if err != nil {
			t.Errorf("Run failed: %v", err)
		}
		done <- summary
	}()

	// Wait until the first record lands, add another, then stop.
	deadline := time.After(2 * time.Second)
	for {
		if rec, ok := store.Record(1); ok && rec.Status == domain.RecordStatusProcessed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first record never processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	store.AddRecord("CONV-2", "late arrival")
	for {
		if rec, ok := store.Record(2); ok && rec.Status == domain.RecordStatusProcessed {
			break
		}
		select {
		case <-deadline:
			t.Fatal("late record never processed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	summary := <-done
	if summary.Stats.Successful != 2 {
		t.Errorf("expected both records classified, got %+v", summary.Stats)
	}
}
