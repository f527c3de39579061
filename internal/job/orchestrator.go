// Package job drives the batch classification loop: fetch pending records,
// classify them under bounded concurrency, write outcomes back and advance
// the checkpoint.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/vietddude/classifier/internal/core/checkpoint"
	"github.com/vietddude/classifier/internal/core/domain"
	"github.com/vietddude/classifier/internal/infra/storage"
	"github.com/vietddude/classifier/internal/observability/metrics"
	"github.com/vietddude/classifier/internal/retry"
)

// Phase is the orchestrator's position in its per-run state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseFetching      Phase = "fetching"
	PhaseDispatching   Phase = "dispatching"
	PhaseAwaiting      Phase = "awaiting"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseDrained       Phase = "drained"
	PhaseError         Phase = "error"
)

// Classifier is the classification client boundary.
type Classifier interface {
	Classify(ctx context.Context, rec *domain.Record) (domain.Classification, int, error)
}

// FailedSink receives terminally failed records for operator inspection.
// Optional; failures are also persisted on the record itself.
type FailedSink interface {
	Push(ctx context.Context, recordID int64, summary string) error
}

// Config holds orchestrator settings.
type Config struct {
	JobName       string
	BatchSize     int
	MaxConcurrent int
	Continuous    bool          // wait and poll again when drained
	PollInterval  time.Duration // continuous mode wait between polls
	MaxIterations int           // 0 = no limit
}

// Summary reports one run.
type Summary struct {
	BatchJobID string
	Stats      domain.JobStats
	Batches    int
	Duration   time.Duration
	Drained    bool
}

// Orchestrator owns neither store; it coordinates reads and writes across
// both and never lets the checkpoint advance past a record whose write-back
// has not been committed.
type Orchestrator struct {
	cfg        Config
	records    storage.RecordRepository
	checkpoint *checkpoint.Manager
	classifier Classifier
	failedSink FailedSink
	storeRetry retry.Config
	log        *slog.Logger

	mu    sync.Mutex
	phase Phase
	runID string
}

// storeRetryDefaults governs retries around record store calls. Store
// failures that survive these retries are batch-fatal.
var storeRetryDefaults = retry.Config{
	MaxRetries: 3,
	BaseDelay:  1500 * time.Millisecond,
	MaxDelay:   30 * time.Second,
	Jitter:     0.1,
	Retryable:  []retry.Category{retry.CategoryTransient, retry.CategoryResource},
}

// New creates an orchestrator. failedSink may be nil.
func New(
	cfg Config,
	records storage.RecordRepository,
	cp *checkpoint.Manager,
	classifier Classifier,
	failedSink FailedSink,
) *Orchestrator {
	if cfg.JobName == "" {
		cfg.JobName = "classification"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	return &Orchestrator{
		cfg:        cfg,
		records:    records,
		checkpoint: cp,
		classifier: classifier,
		failedSink: failedSink,
		storeRetry: storeRetryDefaults,
		log:        slog.Default().With("job", cfg.JobName),
		phase:      PhaseIdle,
	}
}

// Phase returns the orchestrator's current state machine position.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// outcome is one record's terminal result within a batch.
type outcome struct {
	recordID  int64
	success   bool
	attempts  int
	committed bool  // write-back durably applied
	storeErr  error // write-back failure after retries, batch-fatal
}

// Run executes the loop until the store is drained, MaxIterations is hit,
// ctx is cancelled (clean stop) or a store-fatal error occurs. Per-record
// failures never abort a batch; only store-level failures do.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{BatchJobID: uuid.New().String()}
	start := time.Now()

	o.mu.Lock()
	o.runID = summary.BatchJobID
	o.mu.Unlock()

	o.log.Info("Starting batch run",
		"batch_job_id", summary.BatchJobID,
		"batch_size", o.cfg.BatchSize,
		"max_concurrent", o.cfg.MaxConcurrent,
		"continuous", o.cfg.Continuous)

	if err := o.checkpoint.SetStatus(ctx, o.cfg.JobName, domain.JobStatusRunning); err != nil {
		return summary, o.fatal(ctx, summary, start, fmt.Errorf("set job running: %w", err))
	}

	for {
		if ctx.Err() != nil {
			o.log.Info("Run interrupted, exiting cleanly")
			break
		}

		o.setPhase(PhaseFetching)
		batch, err := o.fetchPending(ctx)
		if err != nil {
			return summary, o.fatal(ctx, summary, start, fmt.Errorf("fetch pending: %w", err))
		}

		if len(batch) == 0 {
			o.setPhase(PhaseDrained)
			if !o.cfg.Continuous {
				summary.Drained = true
				o.log.Info("Store drained, finishing run")
				break
			}
			o.log.Debug("Store drained, waiting for new records", "poll_interval", o.cfg.PollInterval)
			select {
			case <-ctx.Done():
			case <-time.After(o.cfg.PollInterval):
			}
			continue
		}

		delta, maxCommitted, storeErr := o.processBatch(ctx, batch)

		o.setPhase(PhaseCheckpointing)
		if maxCommitted > 0 {
			if err := o.checkpoint.Advance(ctx, o.cfg.JobName, maxCommitted, delta); err != nil {
				return summary, o.fatal(ctx, summary, start, fmt.Errorf("advance checkpoint: %w", err))
			}
		}
		summary.Stats.Add(delta)
		summary.Batches++
		metrics.BatchesProcessed.WithLabelValues(o.cfg.JobName).Inc()

		o.log.Info("Batch completed",
			"batch", summary.Batches,
			"records", delta.RecordsProcessed,
			"successful", delta.Successful,
			"failed", delta.Failed,
			"retried", delta.Retried,
			"checkpoint", maxCommitted)

		if storeErr != nil {
			return summary, o.fatal(ctx, summary, start, fmt.Errorf("record write-back: %w", storeErr))
		}

		if o.cfg.MaxIterations > 0 && summary.Batches >= o.cfg.MaxIterations {
			o.log.Info("Max iterations reached", "iterations", summary.Batches)
			break
		}
	}

	summary.Duration = time.Since(start)
	o.setPhase(PhaseIdle)

	// Interrupt and drain both end the run cleanly.
	if err := o.checkpoint.SetStatus(context.WithoutCancel(ctx), o.cfg.JobName, domain.JobStatusCompleted); err != nil {
		o.log.Warn("Failed to mark job completed", "error", err)
	}

	o.log.Info("Run finished",
		"batches", summary.Batches,
		"records", summary.Stats.RecordsProcessed,
		"successful", summary.Stats.Successful,
		"failed", summary.Stats.Failed,
		"retried", summary.Stats.Retried,
		"duration", summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// fetchPending reads the next batch, retrying transient store failures.
func (o *Orchestrator) fetchPending(ctx context.Context) ([]*domain.Record, error) {
	batch, _, err := retry.Do(ctx, o.storeRetry, func(ctx context.Context) ([]*domain.Record, error) {
		return o.records.FetchPending(ctx, o.cfg.BatchSize)
	})
	return batch, err
}

// processBatch dispatches every record as a bounded concurrent task and
// awaits all outcomes. It returns the stats delta, the highest record id
// whose write-back committed, and the first write-back failure if any.
//
// Cancellation stops further dispatching (undispatched records stay
// pending) but already-dispatched tasks run to completion on a detached
// context so target-store writes are never left half-applied.
func (o *Orchestrator) processBatch(ctx context.Context, batch []*domain.Record) (domain.JobStats, int64, error) {
	o.setPhase(PhaseDispatching)

	taskCtx := context.WithoutCancel(ctx)
	sem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrent))
	outcomes := make(chan outcome, len(batch))

	var wg sync.WaitGroup
	for _, rec := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Interrupted; the rest of the batch was never marked
			// processing and remains pending.
			break
		}

		if err := o.markProcessing(taskCtx, rec.ID); err != nil {
			sem.Release(1)
			outcomes <- outcome{recordID: rec.ID, storeErr: err}
			continue
		}

		wg.Add(1)
		go func(rec *domain.Record) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes <- o.processRecord(taskCtx, rec)
		}(rec)
	}

	o.setPhase(PhaseAwaiting)
	wg.Wait()
	close(outcomes)

	var delta domain.JobStats
	var maxCommitted int64
	var storeErr error
	for out := range outcomes {
		if out.storeErr != nil {
			if storeErr == nil {
				storeErr = out.storeErr
			}
			continue
		}

		delta.RecordsProcessed++
		if out.success {
			delta.Successful++
			metrics.RecordsProcessed.WithLabelValues(o.cfg.JobName, "processed").Inc()
		} else {
			delta.Failed++
			metrics.RecordsProcessed.WithLabelValues(o.cfg.JobName, "failed").Inc()
		}
		if out.attempts > 1 {
			delta.Retried++
			metrics.RetriesTotal.WithLabelValues(o.cfg.JobName).Inc()
		}
		if out.committed && out.recordID > maxCommitted {
			maxCommitted = out.recordID
		}
	}
	return delta, maxCommitted, storeErr
}

// processRecord classifies one record and writes the outcome back. Errors
// here are per-record: they become a failed status plus counters, never a
// batch abort, unless the write-back itself fails.
func (o *Orchestrator) processRecord(ctx context.Context, rec *domain.Record) outcome {
	classification, attempts, err := o.classifier.Classify(ctx, rec)
	if err != nil {
		summary := err.Error()
		o.log.Warn("Record classification failed",
			"record_id", rec.ID,
			"attempts", attempts,
			"error", err)

		if storeErr := o.markFailed(ctx, rec.ID, summary); storeErr != nil {
			return outcome{recordID: rec.ID, storeErr: storeErr}
		}
		if o.failedSink != nil {
			if sinkErr := o.failedSink.Push(ctx, rec.ID, summary); sinkErr != nil {
				o.log.Warn("Failed to push record to failed sink", "record_id", rec.ID, "error", sinkErr)
			}
		}
		return outcome{recordID: rec.ID, attempts: attempts, committed: true}
	}

	o.mu.Lock()
	runID := o.runID
	o.mu.Unlock()

	result := &domain.ClassificationResult{
		RecordID:       rec.ID,
		Classification: classification,
		BatchJobID:     runID,
		AttemptCount:   attempts,
		ProcessedAt:    time.Now().UTC(),
	}
	if storeErr := o.markProcessed(ctx, rec.ID, result); storeErr != nil {
		return outcome{recordID: rec.ID, storeErr: storeErr}
	}

	o.log.Debug("Record classified",
		"record_id", rec.ID,
		"intent", classification.Intent,
		"sentiment", classification.Sentiment,
		"attempts", attempts)
	return outcome{recordID: rec.ID, success: true, attempts: attempts, committed: true}
}

func (o *Orchestrator) markProcessing(ctx context.Context, id int64) error {
	_, _, err := retry.Do(ctx, o.storeRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.records.MarkProcessing(ctx, id)
	})
	return err
}

func (o *Orchestrator) markProcessed(ctx context.Context, id int64, result *domain.ClassificationResult) error {
	_, _, err := retry.Do(ctx, o.storeRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.records.MarkProcessed(ctx, id, result)
	})
	return err
}

func (o *Orchestrator) markFailed(ctx context.Context, id int64, summary string) error {
	_, _, err := retry.Do(ctx, o.storeRetry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.records.MarkFailed(ctx, id, summary)
	})
	return err
}

func (o *Orchestrator) fatal(ctx context.Context, summary *Summary, start time.Time, err error) error {
	o.setPhase(PhaseError)
	summary.Duration = time.Since(start)

	if stErr := o.checkpoint.SetStatus(context.WithoutCancel(ctx), o.cfg.JobName, domain.JobStatusError); stErr != nil {
		o.log.Warn("Failed to mark job errored", "error", stErr)
	}
	o.log.Error("Run halted on store failure", "error", err)
	return err
}
