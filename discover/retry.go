package discover

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy controls probe retries for transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries twice with short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// shouldRetry reports whether a probe outcome is worth another attempt.
// Network errors, 429s, and 5xx responses are transient; everything else
// (including 4xx) is a definitive answer.
func shouldRetry(err error, status int) bool {
	if err != nil {
		// A canceled context will not recover on retry.
		if errors.Is(err, context.Canceled) {
			return false
		}
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

// delay returns the backoff before the given attempt (1-based) with jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	// Up to 25% jitter keeps retries from synchronizing across workers.
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// sleep waits for the backoff or until the context is done.
func (p RetryPolicy) sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
