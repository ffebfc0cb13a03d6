package leaselock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryScheduler_ExhaustsAfterMaxAttempts(t *testing.T) {
	r := NewRetryScheduler(3, time.Millisecond)
	r.sleep = func(context.Context, time.Duration) error { return nil }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Step(ctx))
		assert.Equal(t, i, r.Attempts())
	}

	err := r.Step(ctx)
	require.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 3, r.Attempts(), "exhaustion does not count as an attempt")

	r.Reset()
	assert.Zero(t, r.Attempts())
	require.NoError(t, r.Step(ctx))
}

func TestRetryScheduler_Defaults(t *testing.T) {
	r := NewRetryScheduler(-1, -1)
	assert.Equal(t, DefaultMaxAttempts, r.MaxAttempts())
	assert.Equal(t, DefaultSleepInterval, r.Interval())

	r = NewRetryScheduler(0, 0)
	assert.ErrorIs(t, r.Step(context.Background()), ErrRetryExhausted)
}

func TestRetryScheduler_SleepsInterval(t *testing.T) {
	r := NewRetryScheduler(1, 20*time.Millisecond)

	start := time.Now()
	require.NoError(t, r.Step(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRetryScheduler_ContextCancelled(t *testing.T) {
	r := NewRetryScheduler(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Step(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.Attempts())
}
