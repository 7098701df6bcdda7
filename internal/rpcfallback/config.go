package rpcfallback

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DEFAULT_PROBE_TIMEOUT  = 5 * time.Second
	DEFAULT_DEAD_THRESHOLD = 3
	DEFAULT_MAX_RETRIES    = 3
)

// Config holds everything needed to build a Client. Zero durations and counts
// fall back to the package defaults.
type Config[C Connection] struct {
	Endpoints []Endpoint
	Dial      Dialer[C]

	// ProbeTimeout bounds each liveness probe.
	ProbeTimeout time.Duration
	// DeadThreshold is the error count at which an endpoint is marked not live.
	DeadThreshold int
	// MaxRetries is the default attempt ceiling for ExecuteWithFallback.
	MaxRetries int

	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Clock stamps LastChecked and drives the default sleep.
	Clock clock.Clock
	// Sleep replaces the backoff wait, mainly for tests.
	Sleep SleepFunc

	Metrics *Metrics
}

func validateConfig[C Connection](cfg Config[C]) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("%w: at least one endpoint is required", ErrInvalidConfig)
	}
	if cfg.Dial == nil {
		return fmt.Errorf("%w: dialer cannot be nil", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("%w: endpoint %d has an empty URL", ErrInvalidConfig, i)
		}
		if seen[ep.URL] {
			return fmt.Errorf("%w: duplicate endpoint URL %s", ErrInvalidConfig, ep.URL)
		}
		seen[ep.URL] = true
	}
	if cfg.ProbeTimeout < 0 {
		return fmt.Errorf("%w: probe timeout cannot be negative", ErrInvalidConfig)
	}
	if cfg.DeadThreshold < 0 {
		return fmt.Errorf("%w: dead threshold cannot be negative", ErrInvalidConfig)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if cfg.BackoffBase < 0 || cfg.BackoffMax < 0 {
		return fmt.Errorf("%w: backoff durations cannot be negative", ErrInvalidConfig)
	}
	return nil
}

func withDefaults[C Connection](cfg Config[C]) Config[C] {
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DEFAULT_PROBE_TIMEOUT
	}
	if cfg.DeadThreshold == 0 {
		cfg.DeadThreshold = DEFAULT_DEAD_THRESHOLD
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DEFAULT_MAX_RETRIES
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DEFAULT_BACKOFF_BASE
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = DEFAULT_BACKOFF_MAX
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = clockSleep(cfg.Clock)
	}
	return cfg
}
