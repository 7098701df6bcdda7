package rpcfallback

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DEFAULT_BACKOFF_BASE = 1 * time.Second
	DEFAULT_BACKOFF_MAX  = 5 * time.Second
)

// BackoffDelay returns the wait before the retry that follows attempt (1-based):
// min(base * 2^(attempt-1), max). Attempts below 1 are treated as 1.
func BackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= max/2 {
			return max
		}
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// clockSleep waits on a timer from clk so the wait honours the configured clock.
func clockSleep(clk clock.Clock) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := clk.Timer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
