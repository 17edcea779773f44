package fetcher

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy controls how often and how patiently a request is repeated.
type RetryPolicy struct {
	//total attempts including the first one
	MaxAttempts int
	Delay       time.Duration
	//linear backoff waits Delay*attempt, otherwise Delay every time
	Linear bool
	//upper bound of the random extra wait added to each delay
	Jitter time.Duration
}

// DefaultRetryPolicy mirrors the config defaults: 3 attempts, 5s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 5 * time.Second, Jitter: time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backoff is the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.Delay
	if p.Linear {
		d = p.Delay * time.Duration(attempt)
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
