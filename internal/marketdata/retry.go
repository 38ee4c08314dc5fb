package marketdata

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds an external fetch.
type RetryPolicy struct {
	Timeout  time.Duration // per attempt
	Attempts int           // total attempts, at least 1
	Backoff  time.Duration // pause between attempts
}

// DefaultRetryPolicy is one retry with a five second budget per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Timeout: 5 * time.Second, Attempts: 2, Backoff: 100 * time.Millisecond}
}

// FetchWithRetry runs fn under a per-attempt timeout, retrying on failure.
// It stops early when the parent context is done.
func FetchWithRetry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, errors.Join(lastErr, ctx.Err())
			case <-time.After(p.Backoff):
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(lastErr, err)
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		v, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return zero, lastErr
}
