package coordinator

import (
	"context"
	"math"
	"time"
)

// RetryPolicy is a fixed exponential backoff without jitter or cap.
type RetryPolicy struct {
	MaxAttempts int           // Attempts in total, including the first
	BaseDelay   time.Duration // Wait after the first failed attempt
	Factor      float64       // Growth of the wait per attempt
}

// DefaultRetryPolicy waits 500ms then 1s between three attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Factor:      2,
	}
}

// Delay is the wait after the failed attempt with 0-based index attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt)))
}

// RetryCallback is called after a failed attempt that will be retried.
type RetryCallback func(attempt int, err error, nextDelay time.Duration)

// retry runs fn until it succeeds or the policy is exhausted. It returns the
// number of attempts made and the last error. Only ctx interrupts the waits.
func retry(ctx context.Context, clock Clock, p RetryPolicy, fn func(ctx context.Context) error, callback RetryCallback) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if callback != nil {
			callback(attempt+1, err, delay)
		}
		if err := clock.Sleep(ctx, delay); err != nil {
			return attempt + 1, err
		}
	}
	return attempts, lastErr
}
