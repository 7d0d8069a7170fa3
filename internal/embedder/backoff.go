package embedder

import (
	"context"
	"time"
)

// backoffPolicy retries a call with exponential delays. Hosted embedding
// APIs rate-limit aggressively during bulk indexing, so transient failures
// are expected.
type backoffPolicy struct {
	attempts int
	initial  time.Duration
	max      time.Duration
	factor   float64
}

var defaultBackoff = backoffPolicy{
	attempts: 3,
	initial:  100 * time.Millisecond,
	max:      5 * time.Second,
	factor:   2.0,
}

// run calls fn until it succeeds or the attempts are exhausted. Context
// cancellation stops the loop immediately and wins over the last call error.
func (p backoffPolicy) run(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := p.initial

	for attempt := 0; attempt < p.attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < p.attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.factor)
				if delay > p.max {
					delay = p.max
				}
			}
		}
	}

	return lastErr
}
