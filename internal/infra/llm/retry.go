package llm

import (
	"context"
	"time"
)

// RetryPolicy is a bounded, deterministic exponential backoff schedule.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// DefaultRetryPolicy: 3 attempts, 500ms then 1s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Base: 500 * time.Millisecond, Max: 8 * time.Second}
}

// Backoff returns the delay after the n-th failed attempt: Base·2^(n-1), capped at Max.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n <= 0 || p.Base <= 0 {
		return 0
	}
	d := p.Base
	for i := 1; i < n; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Budget is the wall time a full retry schedule may take when every attempt
// runs to attemptTimeout: all attempts plus the backoff between them.
func (p RetryPolicy) Budget(attemptTimeout time.Duration) time.Duration {
	n := p.attempts()
	total := time.Duration(n) * attemptTimeout
	for i := 1; i < n; i++ {
		total += p.Backoff(i)
	}
	return total
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
