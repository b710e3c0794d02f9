package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{3, 50 * time.Millisecond},
		{10, 50 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestBackoffDelayJitter(t *testing.T) {
	b := Backoff{
		InitialDelay:   10 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0.5,
	}

	for i := 0; i < 100; i++ {
		d := b.Delay(2)
		assert.GreaterOrEqual(t, d, 20*time.Millisecond)
		assert.LessOrEqual(t, d, 60*time.Millisecond)
	}
}

func TestBackoffRetrySucceeds(t *testing.T) {
	b := Backoff{InitialDelay: time.Millisecond, Multiplier: 2, MaxRetries: 5}

	calls := 0
	err := b.Retry(context.Background(), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffRetryExhausted(t *testing.T) {
	b := Backoff{InitialDelay: time.Millisecond, MaxRetries: 2}
	refused := errors.New("connection refused")

	calls := 0
	err := b.Retry(context.Background(), nil, func(context.Context) error {
		calls++
		return refused
	})

	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 3, calls, "first attempt plus two retries")
}

func TestBackoffRetryStopsOnPermanentError(t *testing.T) {
	b := Backoff{InitialDelay: time.Millisecond, MaxRetries: 5}
	denied := errors.New("access denied")

	calls := 0
	err := b.Retry(context.Background(), func(err error) bool { return !errors.Is(err, denied) }, func(context.Context) error {
		calls++
		return denied
	})

	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryHonorsContext(t *testing.T) {
	b := Backoff{InitialDelay: time.Hour, MaxRetries: 5}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := b.Retry(ctx, nil, func(context.Context) error {
		return errors.New("refused")
	})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDefaultBackoff(t *testing.T) {
	b := DefaultBackoff()
	assert.Positive(t, b.InitialDelay)
	assert.Positive(t, b.MaxRetries)
	assert.GreaterOrEqual(t, b.MaxDelay, b.InitialDelay)
}
