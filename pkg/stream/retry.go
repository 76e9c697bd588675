package stream

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Backoff computes the delay before retry number attempt as
//
//	Base × (attempt × Increment)^Exponent
//
// so successive retries wait increasingly longer.
type Backoff struct {
	Base      time.Duration
	Increment float64
	Exponent  float64
}

// DefaultBackoff matches the evaluation retry cadence: 1s, 8s, 27s, ...
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Increment: 1, Exponent: 3}
}

// Delay returns the wait before the given 1-based retry attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(float64(attempt)*b.Increment, b.Exponent)
	return time.Duration(factor * float64(b.Base))
}

// Do runs fn until it succeeds, waiting b.Delay(n) between tries, and
// gives up after attempts tries. The last error is wrapped with
// ErrRetryExhausted. A done ctx aborts both waits and further tries.
func Do(ctx context.Context, attempts int, b Backoff, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= attempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
		}
		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
