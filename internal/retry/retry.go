package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config defines invoker behavior.
type Config struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff cap, pre-jitter
	Jitter     float64       // fraction of the delay, uniform in [-j, +j]
	Retryable  []Category    // categories worth retrying
}

// DefaultConfig mirrors the delays used against the classification service.
var DefaultConfig = Config{
	MaxRetries: 3,
	BaseDelay:  2 * time.Second,
	MaxDelay:   60 * time.Second,
	Jitter:     0.1,
	Retryable:  []Category{CategoryTransient, CategoryResource},
}

// minDelay is the positive floor a jittered delay never drops below.
const minDelay = 100 * time.Millisecond

// ExhaustedError is returned after MaxRetries retries all failed. It wraps
// the last underlying error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do executes op, retrying on failures whose category is in cfg.Retryable.
//
// op runs at most cfg.MaxRetries+1 times. A non-retryable failure is
// returned as-is after a single attempt. The returned attempt count covers
// every invocation of op, success or not. Backoff sleeps honor ctx
// cancellation and never block other invocations; there is no shared state.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, int, error) {
	var zero T
	var lastErr error

	maxAttempts := cfg.MaxRetries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if !retryable(cfg.Retryable, Classify(err)) {
			return zero, attempt, err
		}
		if attempt == maxAttempts {
			return zero, attempt, &ExhaustedError{Attempts: attempt, Last: lastErr}
		}

		select {
		case <-ctx.Done():
			return zero, attempt, ctx.Err()
		case <-time.After(Backoff(attempt, cfg)):
		}
	}

	// Unreachable; the loop always returns.
	return zero, maxAttempts, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// Backoff computes the jittered delay before retry n (1-indexed attempt that
// just failed). Raw delay is BaseDelay*2^(n-1) capped at MaxDelay; jitter is
// uniform in [-Jitter*delay, +Jitter*delay] and the result is clamped to a
// positive floor.
func Backoff(attempt int, cfg Config) time.Duration {
	raw := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if raw > float64(cfg.MaxDelay) {
		raw = float64(cfg.MaxDelay)
	}

	jitter := (rand.Float64()*2 - 1) * cfg.Jitter * raw
	d := time.Duration(raw + jitter)
	if d < minDelay {
		d = minDelay
	}
	return d
}

func retryable(categories []Category, c Category) bool {
	for _, rc := range categories {
		if rc == c {
			return true
		}
	}
	return false
}
