// Package memory provides an in-process storage backend used when no
// database is configured, and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/infra/storage"
)

type MemoryStorage struct {
	mu         sync.RWMutex
	records    map[int64]*domain.Record
	results    map[int64]*domain.ClassificationResult // keyed by record id
	jobs       map[string]*domain.JobState
	nextRecord int64
	nextResult int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[int64]*domain.Record),
		results: make(map[int64]*domain.ClassificationResult),
		jobs:    make(map[string]*domain.JobState),
	}
}

// AddRecord seeds a pending record and returns its id.
func (s *MemoryStorage) AddRecord(conversationNumber, content string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRecord++
	id := s.nextRecord
	s.records[id] = &domain.Record{
		ID:                 id,
		ConversationNumber: conversationNumber,
		Content:            content,
		Status:             domain.RecordStatusPending,
		CreatedAt:          time.Now(),
	}
	return id
}

// Record returns a copy of the record, for inspection.
func (s *MemoryStorage) Record(id int64) (*domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	c := *rec
	return &c, true
}

// Result returns a copy of the stored result for a record, for inspection.
func (s *MemoryStorage) Result(recordID int64) (*domain.ClassificationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[recordID]
	if !ok {
		return nil, false
	}
	c := *res
	return &c, true
}

// -----------------------------------------------------------------------------
// Record Repository
// -----------------------------------------------------------------------------

type RecordRepo struct {
	store *MemoryStorage

	// failAfterResultInsert simulates a crash between the result insert and
	// the status update, leaving the record in processing. Tests only.
	failAfterResultInsert bool
	failErr               error
}

func NewRecordRepo(store *MemoryStorage) *RecordRepo {
	return &RecordRepo{store: store}
}

func (r *RecordRepo) FetchPending(ctx context.Context, limit int) ([]*domain.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make([]int64, 0, len(r.store.records))
	for id, rec := range r.store.records {
		if rec.Status == domain.RecordStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	records := make([]*domain.Record, 0, len(ids))
	for _, id := range ids {
		c := *r.store.records[id]
		records = append(records, &c)
	}
	return records, nil
}

func (r *RecordRepo) MarkProcessing(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.store.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}
	if rec.Status != domain.RecordStatusPending {
		return nil
	}
	now := time.Now()
	rec.Status = domain.RecordStatusProcessing
	rec.ProcessingAttempts++
	rec.LastProcessedAt = &now
	return nil
}

func (r *RecordRepo) MarkProcessed(ctx context.Context, id int64, result *domain.ClassificationResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.store.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}

	// Result insert happens before the status update. A crash between the
	// two leaves the record processing, never falsely processed.
	existing, ok := r.store.results[id]
	if !ok {
		r.store.nextResult++
		stored := *result
		stored.ID = r.store.nextResult
		stored.RecordID = id
		stored.ProcessedAt = time.Now()
		r.store.results[id] = &stored
		existing = &stored
	}
	result.ID = existing.ID
	result.RecordID = id

	if r.failAfterResultInsert {
		return r.failErr
	}

	if rec.Status != domain.RecordStatusProcessing && rec.Status != domain.RecordStatusProcessed {
		return nil
	}
	now := time.Now()
	rec.Status = domain.RecordStatusProcessed
	rec.ResultID = &existing.ID
	rec.ErrorSummary = ""
	rec.LastProcessedAt = &now
	return nil
}

func (r *RecordRepo) MarkFailed(ctx context.Context, id int64, summary string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	rec, ok := r.store.records[id]
	if !ok {
		return storage.ErrRecordNotFound
	}
	if rec.Status != domain.RecordStatusProcessing && rec.Status != domain.RecordStatusFailed {
		return nil
	}
	now := time.Now()
	rec.Status = domain.RecordStatusFailed
	rec.ErrorSummary = summary
	rec.LastProcessedAt = &now
	return nil
}

func (r *RecordRepo) FindStalled(ctx context.Context, olderThan time.Duration) ([]*domain.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	var stalled []*domain.Record
	for _, rec := range r.store.records {
		if rec.Status != domain.RecordStatusProcessing {
			continue
		}
		if rec.LastProcessedAt != nil && rec.LastProcessedAt.After(cutoff) {
			continue
		}
		c := *rec
		stalled = append(stalled, &c)
	}
	sort.Slice(stalled, func(i, j int) bool { return stalled[i].ID < stalled[j].ID })
	return stalled, nil
}

func (r *RecordRepo) ResetFailed(ctx context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for _, rec := range r.store.records {
		if rec.Status == domain.RecordStatusFailed {
			rec.Status = domain.RecordStatusPending
			rec.ErrorSummary = ""
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Job State Repository
// -----------------------------------------------------------------------------

type JobStateRepo struct {
	store *MemoryStorage
}

func NewJobStateRepo(store *MemoryStorage) *JobStateRepo {
	return &JobStateRepo{store: store}
}

func (r *JobStateRepo) Get(ctx context.Context, jobName string) (*domain.JobState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	js, ok := r.store.jobs[jobName]
	if !ok {
		return nil, nil
	}
	c := *js
	return &c, nil
}

func (r *JobStateRepo) Advance(ctx context.Context, jobName string, lastID int64, delta domain.JobStats) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	js, ok := r.store.jobs[jobName]
	if !ok {
		js = &domain.JobState{JobName: jobName, Status: domain.JobStatusRunning}
		r.store.jobs[jobName] = js
	}

	if js.LastProcessedID == nil || lastID > *js.LastProcessedID {
		id := lastID
		js.LastProcessedID = &id
	}
	js.Stats.Add(delta)
	js.LastUpdated = time.Now()
	return nil
}

func (r *JobStateRepo) SetStatus(ctx context.Context, jobName string, status domain.JobStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	js, ok := r.store.jobs[jobName]
	if !ok {
		js = &domain.JobState{JobName: jobName}
		r.store.jobs[jobName] = js
	}
	js.Status = status
	js.LastUpdated = time.Now()
	return nil
}

func (r *JobStateRepo) Reset(ctx context.Context, jobName string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	js, ok := r.store.jobs[jobName]
	if !ok {
		return nil
	}
	js.Status = domain.JobStatusIdle
	js.LastProcessedID = nil
	js.Stats = domain.JobStats{}
	js.LastUpdated = time.Now()
	return nil
}

// List returns all job states, for the status command.
func (r *JobStateRepo) List(ctx context.Context) ([]*domain.JobState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	states := make([]*domain.JobState, 0, len(r.store.jobs))
	for _, js := range r.store.jobs {
		c := *js
		states = append(states, &c)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].JobName < states[j].JobName })
	return states, nil
}
