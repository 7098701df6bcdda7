package rpcfallback

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelaySchedule(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
		{200, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BackoffDelay(tt.attempt, DEFAULT_BACKOFF_BASE, DEFAULT_BACKOFF_MAX), "attempt %d", tt.attempt)
	}
}

func TestBackoffDelayMonotoneAndCapped(t *testing.T) {
	bases := []time.Duration{time.Millisecond, 300 * time.Millisecond, time.Second, 7 * time.Second}
	for _, base := range bases {
		prev := time.Duration(0)
		for attempt := 1; attempt <= 64; attempt++ {
			d := BackoffDelay(attempt, base, DEFAULT_BACKOFF_MAX)
			assert.GreaterOrEqual(t, d, prev, "base %s attempt %d", base, attempt)
			assert.LessOrEqual(t, d, DEFAULT_BACKOFF_MAX, "base %s attempt %d", base, attempt)
			prev = d
		}
	}
}

func TestBackoffDelayZeroBase(t *testing.T) {
	assert.Zero(t, BackoffDelay(3, 0, time.Second))
}

func TestClockSleepHonoursCancellation(t *testing.T) {
	sleep := clockSleep(clock.NewMock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClockSleepWaitsForTimer(t *testing.T) {
	sleep := clockSleep(clock.New())

	start := time.Now()
	require.NoError(t, sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	require.NoError(t, sleep(context.Background(), 0))
}
