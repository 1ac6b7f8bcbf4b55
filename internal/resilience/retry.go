package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds retries of a single provider step.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the delay before the first retry; it doubles afterwards.
	Backoff time.Duration
	// MaxBackoff caps the delay between tries.
	MaxBackoff time.Duration
	// Jitter is the random spread applied to each delay, as a fraction.
	Jitter float64
}

// DefaultRetryPolicy allows one retry after a short pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   2,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		Jitter:     0.2,
	}
}

func (p RetryPolicy) delay(retry int) time.Duration {
	d := p.Backoff << retry
	if d <= 0 || d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Retry runs fn until it succeeds, fails with a non-transient error, the
// policy's attempts run out, or ctx ends. onRetry, when set, is called
// before each pause.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error), onRetry func(attempt int, err error)) (T, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var (
		val T
		err error
	)
	for attempt := 1; ; attempt++ {
		val, err = fn(ctx)
		if err == nil || attempt >= p.Attempts || ctx.Err() != nil || !IsTransient(err) {
			return val, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		t := time.NewTimer(p.delay(attempt - 1))
		select {
		case <-ctx.Done():
			t.Stop()
			return val, err
		case <-t.C:
		}
	}
}
