package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/rpcfallback"
)

var (
	ErrInvalidEndpointURL = errors.New("invalid RPC endpoint URL")
	ErrMalformedResponse  = errors.New("malformed RPC response")
)

var chainLogger = logger.GetForComponent("solana_chain")

const (
	DEFAULT_HTTP_TIMEOUT = 15 * time.Second
	COMMITMENT           = rpc.CommitmentConfirmed
)

// Conn is a Solana JSON-RPC connection bound to one endpoint.
type Conn struct {
	endpoint rpcfallback.Endpoint
	client   *rpc.Client
}

// Dialer creates Conns that share one HTTP client.
type Dialer struct {
	httpClient *http.Client
	headers    map[string]string
}

// NewDialer returns a Dialer whose requests time out after timeout.
func NewDialer(timeout time.Duration, headers map[string]string) *Dialer {
	if timeout <= 0 {
		timeout = DEFAULT_HTTP_TIMEOUT
	}
	return &Dialer{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
	}
}

// Dial validates the endpoint URL and builds a client for it. No request is sent.
func (d *Dialer) Dial(ep rpcfallback.Endpoint) (*Conn, error) {
	if err := validateEndpointURL(ep.URL); err != nil {
		return nil, err
	}
	rpcClient := jsonrpc.NewClientWithOpts(ep.URL, &jsonrpc.RPCClientOpts{
		HTTPClient:    d.httpClient,
		CustomHeaders: d.headers,
	})
	chainLogger.Debug().Str("endpoint", ep.Name).Msg("Dialed Solana RPC endpoint")
	return &Conn{endpoint: ep, client: rpc.NewWithCustomRPCClient(rpcClient)}, nil
}

func validateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpointURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidEndpointURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidEndpointURL, raw)
	}
	return nil
}

// Probe checks liveness with getSlot.
func (c *Conn) Probe(ctx context.Context) error {
	_, err := c.GetSlot(ctx)
	return err
}

// Endpoint returns the endpoint this connection is bound to.
func (c *Conn) Endpoint() rpcfallback.Endpoint {
	return c.endpoint
}

// GetSlot returns the latest confirmed slot.
func (c *Conn) GetSlot(ctx context.Context) (uint64, error) {
	slot, err := c.client.GetSlot(ctx, COMMITMENT)
	if err != nil {
		return 0, fmt.Errorf("getSlot on %s: %w", c.endpoint.Name, err)
	}
	return slot, nil
}

// GetBalance returns the lamport balance of owner.
func (c *Conn) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	out, err := c.client.GetBalance(ctx, owner, COMMITMENT)
	if err != nil {
		return 0, fmt.Errorf("getBalance on %s: %w", c.endpoint.Name, err)
	}
	if out == nil {
		return 0, fmt.Errorf("%w: empty getBalance result", ErrMalformedResponse)
	}
	return out.Value, nil
}
