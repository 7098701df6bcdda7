/*
Package rpcfallback keeps a ranked set of JSON-RPC endpoints and runs read operations
against whichever one currently answers, switching endpoints and backing off on failure.

Ranking is (live first, fewest errors, lowest priority). An endpoint is marked dead once
its error count reaches the dead threshold and is still tried after every live endpoint.
State is guarded by a mutex held only around reads and writes of the records; probes and
operations run unlocked, so concurrent callers may probe redundantly or invalidate the
same connection twice.
*/

package rpcfallback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/varayield/varayield/internal/logger"
)

var fallbackLogger = logger.GetForComponent("rpc_fallback")

var ErrNilOperation = errors.New("operation cannot be nil")

// Connection is a handle bound to one endpoint. Probe is a cheap liveness call.
type Connection interface {
	Probe(ctx context.Context) error
}

// Dialer opens a connection to an endpoint. It should not perform network I/O;
// liveness is established by Probe.
type Dialer[C Connection] func(ep Endpoint) (C, error)

// Operation is a read performed with a live connection.
type Operation[C Connection] func(ctx context.Context, conn C) error

type activeConn[C Connection] struct {
	conn  C
	index int
}

// Client runs operations against the best available endpoint.
type Client[C Connection] struct {
	mu        sync.Mutex
	endpoints []Endpoint
	active    *activeConn[C]

	dial          Dialer[C]
	probeTimeout  time.Duration
	deadThreshold int
	maxRetries    int
	backoffBase   time.Duration
	backoffMax    time.Duration
	clock         clock.Clock
	sleep         SleepFunc
	metrics       *Metrics
	logger        zerolog.Logger
}

// New creates a fallback client. The endpoint records are copied.
func New[C Connection](cfg Config[C]) (*Client[C], error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	cfg = withDefaults(cfg)

	endpoints := make([]Endpoint, len(cfg.Endpoints))
	copy(endpoints, cfg.Endpoints)
	for i := range endpoints {
		if endpoints[i].Name == "" {
			endpoints[i].Name = endpoints[i].URL
		}
	}

	c := &Client[C]{
		endpoints:     endpoints,
		dial:          cfg.Dial,
		probeTimeout:  cfg.ProbeTimeout,
		deadThreshold: cfg.DeadThreshold,
		maxRetries:    cfg.MaxRetries,
		backoffBase:   cfg.BackoffBase,
		backoffMax:    cfg.BackoffMax,
		clock:         cfg.Clock,
		sleep:         cfg.Sleep,
		metrics:       cfg.Metrics,
		logger:        fallbackLogger,
	}
	for _, ep := range endpoints {
		c.metrics.setEndpoint(ep)
	}

	c.logger.Info().
		Int("endpoints", len(endpoints)).
		Dur("probeTimeout", c.probeTimeout).
		Int("deadThreshold", c.deadThreshold).
		Int("maxRetries", c.maxRetries).
		Msg("RPC fallback client created")

	return c, nil
}

// GetWorkingConnection returns the cached connection if it still passes a probe,
// otherwise probes endpoints in rank order and caches the first that answers.
func (c *Client[C]) GetWorkingConnection(ctx context.Context) (C, error) {
	active, err := c.acquire(ctx)
	if err != nil {
		var zero C
		return zero, err
	}
	return active.conn, nil
}

// ExecuteWithFallback runs op with the configured retry ceiling.
func (c *Client[C]) ExecuteWithFallback(ctx context.Context, op Operation[C]) error {
	return c.ExecuteWithRetries(ctx, op, c.maxRetries)
}

// ExecuteWithRetries runs op up to maxRetries times (the configured ceiling when
// maxRetries < 1). Each failed attempt counts against the bound endpoint, drops the
// cached connection and waits BackoffDelay(attempt) before the next attempt.
// A failure to obtain any connection also consumes an attempt.
func (c *Client[C]) ExecuteWithRetries(ctx context.Context, op Operation[C], maxRetries int) error {
	if op == nil {
		return ErrNilOperation
	}
	if maxRetries < 1 {
		maxRetries = c.maxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		active, err := c.acquire(ctx)
		if err == nil {
			err = op(ctx, active.conn)
			if err == nil {
				c.metrics.recordOperation(c.endpointName(active.index), nil)
				return nil
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("fallback execution cancelled on attempt %d: %w", attempt, errors.Join(ctxErr, err))
		}
		if active != nil {
			c.metrics.recordOperation(c.endpointName(active.index), err)
			c.recordOperationFailure(active, err)
		}
		lastErr = err

		if attempt < maxRetries {
			delay := BackoffDelay(attempt, c.backoffBase, c.backoffMax)
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("maxRetries", maxRetries).
				Dur("backoff", delay).
				Msg("RPC attempt failed, retrying")
			c.metrics.recordRetry()
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return fmt.Errorf("fallback execution cancelled during backoff: %w", errors.Join(sleepErr, lastErr))
			}
		}
	}

	c.metrics.recordExhausted()
	c.logger.Error().
		Err(lastErr).
		Int("attempts", maxRetries).
		Msg("All RPC endpoints exhausted")
	return &ExhaustedError{Attempts: maxRetries, Last: lastErr}
}

// Execute runs a value-returning read through client and returns the value of the
// successful attempt.
func Execute[C Connection, T any](ctx context.Context, client *Client[C], op func(ctx context.Context, conn C) (T, error)) (T, error) {
	var result T
	err := client.ExecuteWithFallback(ctx, func(ctx context.Context, conn C) error {
		value, err := op(ctx, conn)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}

// GetEndpointStatus returns a copy of every endpoint record in configuration order.
func (c *Client[C]) GetEndpointStatus() []Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := make([]Endpoint, len(c.endpoints))
	copy(status, c.endpoints)
	return status
}

// ActiveEndpoint returns the endpoint the cached connection is bound to, if any.
func (c *Client[C]) ActiveEndpoint() (Endpoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Endpoint{}, false
	}
	return c.endpoints[c.active.index], true
}

// ResetEndpoints marks every endpoint live with zero errors and drops the cached connection.
func (c *Client[C]) ResetEndpoints() {
	c.mu.Lock()
	for i := range c.endpoints {
		c.endpoints[i].IsLive = true
		c.endpoints[i].ErrorCount = 0
	}
	c.active = nil
	status := make([]Endpoint, len(c.endpoints))
	copy(status, c.endpoints)
	c.mu.Unlock()

	for _, ep := range status {
		c.metrics.setEndpoint(ep)
	}
	c.logger.Info().Msg("RPC endpoints reset")
}

func (c *Client[C]) acquire(ctx context.Context) (*activeConn[C], error) {
	c.mu.Lock()
	current := c.active
	c.mu.Unlock()

	if current != nil {
		err := c.probe(ctx, current.conn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.recordProbe(current.index, err)
		if err == nil {
			return current, nil
		}
		c.invalidate(current)
		c.logger.Warn().
			Err(err).
			Str("endpoint", c.endpointName(current.index)).
			Msg("Active RPC connection failed revalidation")
	}
	return c.selectEndpoint(ctx)
}

func (c *Client[C]) selectEndpoint(ctx context.Context) (*activeConn[C], error) {
	c.mu.Lock()
	order := rankedIndexes(c.endpoints)
	candidates := make([]Endpoint, len(c.endpoints))
	copy(candidates, c.endpoints)
	c.mu.Unlock()

	causes := make([]error, 0, len(order))
	for _, idx := range order {
		ep := candidates[idx]
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conn, err := c.dial(ep)
		if err == nil {
			err = c.probe(ctx, conn)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.recordProbe(idx, err)
		if err != nil {
			causes = append(causes, &ProbeError{Endpoint: ep.Name, Err: err})
			continue
		}

		next := &activeConn[C]{conn: conn, index: idx}
		c.mu.Lock()
		c.active = next
		c.mu.Unlock()

		c.logger.Info().
			Str("endpoint", ep.Name).
			Int("priority", ep.Priority).
			Msg("Selected RPC endpoint")
		return next, nil
	}

	c.logger.Error().Int("tried", len(causes)).Msg("No RPC endpoint answered its probe")
	return nil, &NoWorkingEndpointError{Causes: causes}
}

// probe runs conn.Probe bounded by the probe timeout.
func (c *Client[C]) probe(ctx context.Context, conn C) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- conn.Probe(probeCtx)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrProbeTimeout
		}
		return err
	case <-probeCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrProbeTimeout
	}
}

// recordProbe applies a probe result. A failure adds one error and marks the endpoint
// dead at the threshold. A success marks it live and removes one error, never going below zero.
func (c *Client[C]) recordProbe(index int, err error) {
	c.mu.Lock()
	ep := &c.endpoints[index]
	ep.LastChecked = c.clock.Now()
	var revived, died bool
	if err == nil {
		revived = !ep.IsLive
		ep.IsLive = true
		if ep.ErrorCount > 0 {
			ep.ErrorCount--
		}
	} else {
		ep.ErrorCount++
		if ep.IsLive && ep.ErrorCount >= c.deadThreshold {
			ep.IsLive = false
			died = true
		}
	}
	snapshot := *ep
	c.mu.Unlock()

	c.metrics.recordProbe(snapshot.Name, err)
	c.metrics.setEndpoint(snapshot)
	switch {
	case err != nil:
		c.logger.Warn().Err(err).Str("endpoint", snapshot.Name).Int("errorCount", snapshot.ErrorCount).Msg("RPC endpoint probe failed")
	case revived:
		c.logger.Info().Str("endpoint", snapshot.Name).Int("errorCount", snapshot.ErrorCount).Msg("RPC endpoint is live again")
	}
	if died {
		c.logger.Warn().Str("endpoint", snapshot.Name).Int("errorCount", snapshot.ErrorCount).Msg("RPC endpoint marked dead")
	}
}

func (c *Client[C]) recordOperationFailure(active *activeConn[C], err error) {
	c.mu.Lock()
	ep := &c.endpoints[active.index]
	ep.ErrorCount++
	died := false
	if ep.IsLive && ep.ErrorCount >= c.deadThreshold {
		ep.IsLive = false
		died = true
	}
	if c.active == active {
		c.active = nil
	}
	snapshot := *ep
	c.mu.Unlock()

	c.metrics.setEndpoint(snapshot)
	c.logger.Debug().Err(err).Str("endpoint", snapshot.Name).Int("errorCount", snapshot.ErrorCount).Msg("RPC operation failed")
	if died {
		c.logger.Warn().Str("endpoint", snapshot.Name).Int("errorCount", snapshot.ErrorCount).Msg("RPC endpoint marked dead")
	}
}

func (c *Client[C]) invalidate(active *activeConn[C]) {
	c.mu.Lock()
	if c.active == active {
		c.active = nil
	}
	c.mu.Unlock()
}

func (c *Client[C]) endpointName(index int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[index].Name
}
