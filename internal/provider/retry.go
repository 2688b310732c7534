package provider

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls CallWithRetry.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls made before giving up.
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number to get the wait before
	// the next attempt (1s, 2s, 3s with the default).
	BaseDelay time.Duration
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Wait suspends for d. Defaults to a context-aware timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns three attempts with a one second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Delay returns the wait after the given 1-based attempt failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(attempt)
}

// ShouldRetry decides whether a failed attempt may be retried. Errors that
// implement Retryable decide for themselves; other non-nil errors are
// treated as transient.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// CallWithRetry runs fn until it succeeds, fails with a non-retryable error,
// or MaxAttempts calls have been made. The last error is returned.
func CallWithRetry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.Wait
	if wait == nil {
		wait = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := wait(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
