package app

import (
	"context"
	"time"
)

// RetryPolicy retries an operation on transient failure with exponential
// backoff. It is independent of any concurrency primitive; the dispatcher
// composes it with its worker bound and per-send timeout.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // cap on the doubling delay
}

// DefaultRetryPolicy matches the mail-dispatch policy: 1 initial attempt +
// 2 retries, 2s backoff doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
}

// Do runs op until it succeeds, attempts are exhausted, or ctx is done.
// The context deadline bounds the whole attempt sequence, backoff included.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt >= p.MaxAttempts {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
