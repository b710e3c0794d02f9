package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes exponentially growing delays with jitter. It is used by
// the pool filler to space out replenishment attempts against a failing
// database.
type Backoff struct {
	// InitialDelay is the first retry delay.
	InitialDelay time.Duration
	// MaxDelay caps the delay (0 = no cap).
	MaxDelay time.Duration
	// Multiplier is the growth factor (typically 2.0).
	Multiplier float64
	// JitterFraction is the random jitter factor (0.0-1.0).
	JitterFraction float64
	// MaxRetries bounds Retry (0 = no retries after the first attempt).
	MaxRetries int
}

// DefaultBackoff returns defaults for background connection replenishment.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		MaxRetries:     3,
	}
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt))

	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	// ±JitterFraction
	if b.JitterFraction > 0 {
		jitter := delay * b.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitter
	}

	if delay < float64(b.InitialDelay) {
		delay = float64(b.InitialDelay)
	}
	return time.Duration(delay)
}

// Retry calls fn until it succeeds, MaxRetries retries have failed, ctx is
// done, or retryable reports false for the returned error. A nil retryable
// retries every error. The last error from fn is returned.
func (b Backoff) Retry(ctx context.Context, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= b.MaxRetries || (retryable != nil && !retryable(err)) {
			return err
		}

		delay := b.Delay(attempt)
		log.WithError(err).
			WithField("attempt", attempt+1).
			WithField("next_retry", delay).
			Debug("retrying after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
