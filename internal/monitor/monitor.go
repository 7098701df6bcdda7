/*

Package monitor runs the periodic endpoint health check. Each check asks the fallback
client for a working connection, publishes the outcome on the gRPC health service and,
when a store is configured, records the endpoint table.

*/

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/varayield/varayield/internal/config"
	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/rpcfallback"
	"github.com/varayield/varayield/internal/state"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SOLANA_RPC_SERVICE is the health service name that tracks upstream RPC reachability.
// The overall service ("") follows it.
const SOLANA_RPC_SERVICE = "solana-rpc"

// SnapshotStore persists endpoint tables. *state.Store satisfies it.
type SnapshotStore interface {
	SaveEndpointSnapshot(ctx context.Context, snap state.EndpointSnapshot) (int64, error)
}

// CheckResult is the outcome of one health check.
type CheckResult struct {
	Healthy        bool      `json:"healthy"`
	ActiveEndpoint string    `json:"active_endpoint,omitempty"`
	LiveEndpoints  int       `json:"live_endpoints"`
	TotalEndpoints int       `json:"total_endpoints"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Monitor periodically checks endpoint health.
type Monitor[C rpcfallback.Connection] struct {
	logger   zerolog.Logger
	rpc      *rpcfallback.Client[C]
	health   *health.Server
	store    SnapshotStore
	interval time.Duration
	clock    clock.Clock

	mu     sync.Mutex
	checks int
	last   CheckResult
}

// Config holds the dependencies of a Monitor. Store and Clock are optional.
type Config[C rpcfallback.Connection] struct {
	RPC      *rpcfallback.Client[C]
	Health   *health.Server
	Store    SnapshotStore
	Interval time.Duration
	Clock    clock.Clock
}

// New creates a Monitor.
func New[C rpcfallback.Connection](cfg Config[C]) (*Monitor[C], error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("monitor configuration validation failed: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	m := &Monitor[C]{
		logger:   logger.GetForComponent("rpc_monitor"),
		rpc:      cfg.RPC,
		health:   cfg.Health,
		store:    cfg.Store,
		interval: cfg.Interval,
		clock:    cfg.Clock,
	}

	m.logger.Info().
		Dur("interval", m.interval).
		Bool("persistSnapshots", m.store != nil).
		Msg("RPC monitor created")
	return m, nil
}

func validateConfig[C rpcfallback.Connection](cfg Config[C]) error {
	if cfg.RPC == nil {
		return errors.New("rpc client cannot be nil")
	}
	if cfg.Health == nil {
		return errors.New("health server cannot be nil")
	}
	if cfg.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	return nil
}

// RunLoop checks immediately, then once per interval until ctx is cancelled.
func (m *Monitor[C]) RunLoop(ctx context.Context) {
	m.logger.Info().Dur("interval", m.interval).Msg("Starting RPC monitor loop")

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	m.CheckOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("RPC monitor stopped due to context cancellation")
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single health check and publishes its result. A check cut short by
// ctx cancellation changes no health status and is not recorded.
func (m *Monitor[C]) CheckOnce(ctx context.Context) CheckResult {
	result := CheckResult{CheckedAt: m.clock.Now()}
	checkLogger := m.logger.With().Str("check_id", uuid.NewString()).Logger()

	_, err := m.rpc.GetWorkingConnection(ctx)
	if err != nil && ctx.Err() != nil {
		// Shutdown, not an upstream failure.
		checkLogger.Debug().Err(err).Msg("Health check interrupted")
		result.Error = err.Error()
		return result
	}

	status := m.rpc.GetEndpointStatus()
	result.TotalEndpoints = len(status)
	for _, ep := range status {
		if ep.IsLive {
			result.LiveEndpoints++
		}
	}
	if active, ok := m.rpc.ActiveEndpoint(); ok && err == nil {
		result.ActiveEndpoint = active.Name
	}

	serving := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
		result.Error = err.Error()
		checkLogger.Warn().Err(err).Int("live", result.LiveEndpoints).Msg("No working RPC endpoint")
	} else {
		result.Healthy = true
		checkLogger.Debug().Str("active", result.ActiveEndpoint).Int("live", result.LiveEndpoints).Msg("RPC health check passed")
	}
	m.health.SetServingStatus("", serving)
	m.health.SetServingStatus(SOLANA_RPC_SERVICE, serving)

	if m.store != nil {
		m.saveSnapshot(ctx, checkLogger, result, status)
	}

	m.mu.Lock()
	m.checks++
	m.last = result
	m.mu.Unlock()
	return result
}

func (m *Monitor[C]) saveSnapshot(ctx context.Context, log zerolog.Logger, result CheckResult, status []rpcfallback.Endpoint) {
	redacted := make([]rpcfallback.Endpoint, len(status))
	for i, ep := range status {
		ep.URL = config.RedactURL(ep.URL)
		redacted[i] = ep
	}
	snap := state.EndpointSnapshot{
		CapturedAt:     result.CheckedAt,
		ActiveEndpoint: result.ActiveEndpoint,
		Endpoints:      redacted,
	}
	if _, err := m.store.SaveEndpointSnapshot(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("Failed to persist endpoint snapshot")
	}
}

// LastCheck returns the most recent completed check and the number of completed checks.
// Checks interrupted by ctx cancellation are not counted.
func (m *Monitor[C]) LastCheck() (CheckResult, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.checks
}
