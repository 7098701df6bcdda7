/*
This package fetches market data used by the analyzer and optimizer:

  - hourly price history from CoinGecko
  - spot prices by mint from the Jupiter price API
  - the pool analytics list from the Raydium API

None of these go through the RPC fallback client; they are plain HTTPS APIs with their own
retry loop.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/varayield/varayield/internal/logger"
)

var fetchLogger = logger.GetForComponent("datafetcher")

var ErrAPIConfiguration = errors.New("API configuration error")
var ErrAPIResponseInvalid = errors.New("API response validation failed")

const (
	MAX_RETRIES         = 3
	DEFAULT_TIMEOUT     = 30 * time.Second
	DEFAULT_RETRY_DELAY = time.Second
	USER_AGENT          = "varayield/1.0"
)

// Config holds the endpoints and collaborators of a Client.
type Config struct {
	HTTPClient      *http.Client
	CoinGeckoURL    string
	CoinGeckoAPIKey string
	JupiterURL      string
	PoolsURL        string
	// RetryDelay is multiplied by the attempt number between retries.
	RetryDelay time.Duration
	Clock      clock.Clock
}

// Client fetches market data over HTTPS.
type Client struct {
	httpClient   *http.Client
	coinGeckoURL string
	apiKey       string
	jupiterURL   string
	poolsURL     string
	retryDelay   time.Duration
	clock        clock.Clock
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	c := &Client{
		httpClient:   cfg.HTTPClient,
		coinGeckoURL: strings.TrimRight(cfg.CoinGeckoURL, "/"),
		apiKey:       cfg.CoinGeckoAPIKey,
		jupiterURL:   cfg.JupiterURL,
		poolsURL:     cfg.PoolsURL,
		retryDelay:   cfg.RetryDelay,
		clock:        cfg.Clock,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DEFAULT_TIMEOUT}
	}
	if c.retryDelay == 0 {
		c.retryDelay = DEFAULT_RETRY_DELAY
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	return c, nil
}

func validateConfig(cfg Config) error {
	for name, u := range map[string]string{
		"CoinGeckoURL": cfg.CoinGeckoURL,
		"JupiterURL":   cfg.JupiterURL,
		"PoolsURL":     cfg.PoolsURL,
	} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%w: %s must be an http(s) URL, got %q", ErrAPIConfiguration, name, u)
		}
	}
	if cfg.RetryDelay < 0 {
		return fmt.Errorf("%w: RetryDelay cannot be negative", ErrAPIConfiguration)
	}
	return nil
}

// statusError is a non-200 answer. 4xx other than 429 is not retried.
type statusError struct {
	status int
	source string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.source, e.status)
}

func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return !errors.Is(err, ErrAPIResponseInvalid) &&
		!errors.Is(err, ErrAPIConfiguration) &&
		!errors.Is(err, context.Canceled)
}

// withRetries runs fn up to MAX_RETRIES times, waiting attempt*retryDelay between tries.
func (c *Client) withRetries(ctx context.Context, what string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == MAX_RETRIES {
			break
		}

		fetchLogger.Warn().
			Err(lastErr).
			Str("request", what).
			Int("attempt", attempt).
			Msg("Request failed, will retry")

		timer := c.clock.Timer(time.Duration(attempt) * c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	fetchLogger.Error().
		Err(lastErr).
		Str("request", what).
		Msg("Request failed")
	return fmt.Errorf("%s: %w", what, lastErr)
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIConfiguration, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", USER_AGENT)
	return req, nil
}
