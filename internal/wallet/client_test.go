package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varayield/varayield/internal/chain"
	"github.com/varayield/varayield/internal/config"
	"github.com/varayield/varayield/internal/rpcfallback"
)

const (
	testOwner = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	bonkMint  = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	oddMint   = "Odd1111111111111111111111111111111111111111"
)

// rpcNode answers getSlot, getBalance and getTokenAccountsByOwner.
type rpcNode struct {
	mu       sync.Mutex
	failures int // requests to fail with 503 before answering
	lamports uint64
	accounts []interface{}
}

func (n *rpcNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	fail := n.failures > 0 && req.Method != "getSlot"
	if fail {
		n.failures--
	}
	n.mu.Unlock()
	if fail {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
		return
	}

	var result interface{}
	switch req.Method {
	case "getSlot":
		result = 100
	case "getBalance":
		result = map[string]interface{}{"context": map[string]interface{}{"slot": 100}, "value": n.lamports}
	case "getTokenAccountsByOwner":
		result = map[string]interface{}{"context": map[string]interface{}{"slot": 100}, "value": n.accounts}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func tokenAccount(pubkey, mint, amount string, decimals int) map[string]interface{} {
	return map[string]interface{}{
		"pubkey": pubkey,
		"account": map[string]interface{}{
			"data": map[string]interface{}{
				"program": "spl-token",
				"parsed": map[string]interface{}{
					"type": "account",
					"info": map[string]interface{}{
						"mint":        mint,
						"owner":       testOwner,
						"tokenAmount": map[string]interface{}{"amount": amount, "decimals": decimals},
					},
				},
			},
		},
	}
}

type staticPrices struct {
	prices map[string]float64
	err    error
	asked  []string
}

func (s *staticPrices) FetchSpotPrices(_ context.Context, mints []string) (map[string]float64, error) {
	s.asked = mints
	return s.prices, s.err
}

func newTestWallet(t *testing.T, node *rpcNode, prices PriceSource) (*Client, *clock.Mock) {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	endpoints, err := rpcfallback.NewEndpoints(srv.URL)
	require.NoError(t, err)
	rpc, err := rpcfallback.New(rpcfallback.Config[*chain.Conn]{
		Endpoints:     endpoints,
		Dial:          chain.NewDialer(time.Second, nil).Dial,
		ProbeTimeout:  time.Second,
		DeadThreshold: 10,
		Sleep:         func(context.Context, time.Duration) error { return nil },
	})
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	c, err := NewClient(rpc, prices, mock)
	require.NoError(t, err)
	return c, mock
}

func TestNewClientRequiresRPC(t *testing.T) {
	_, err := NewClient(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilRPCClient)
}

func TestGetSOLBalance(t *testing.T) {
	c, _ := newTestWallet(t, &rpcNode{lamports: 2_500_000_000}, nil)

	bal, err := c.GetSOLBalance(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, testOwner, bal.Owner)
	assert.Equal(t, uint64(2_500_000_000), bal.Lamports)
	assert.InDelta(t, 2.5, bal.SOL, 1e-12)
}

func TestGetSOLBalanceRetriesTransientFailures(t *testing.T) {
	c, _ := newTestWallet(t, &rpcNode{lamports: 1, failures: 2}, nil)

	bal, err := c.GetSOLBalance(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bal.Lamports)
}

func TestGetSOLBalanceExhausted(t *testing.T) {
	c, _ := newTestWallet(t, &rpcNode{failures: 100}, nil)

	_, err := c.GetSOLBalance(context.Background(), testOwner)
	assert.ErrorIs(t, err, rpcfallback.ErrAllEndpointsExhausted)
}

func TestInvalidAddress(t *testing.T) {
	c, _ := newTestWallet(t, &rpcNode{}, nil)

	_, err := c.GetSOLBalance(context.Background(), "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = c.GetTokenHoldings(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestGetTokenHoldings(t *testing.T) {
	node := &rpcNode{accounts: []interface{}{
		tokenAccount("AccUSDC", config.USDC_MINT, "12500000", 6),
		tokenAccount("AccEmpty", bonkMint, "0", 5),
		tokenAccount("AccBad", bonkMint, "12x", 5),
		tokenAccount("AccOdd", oddMint, "7", 0),
	}}
	c, _ := newTestWallet(t, node, nil)

	holdings, err := c.GetTokenHoldings(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, holdings, 2)

	assert.Equal(t, config.USDC_MINT, holdings[0].Mint)
	assert.Equal(t, "USDC", holdings[0].Symbol)
	assert.Equal(t, "AccUSDC", holdings[0].Account)
	assert.Equal(t, "12500000", holdings[0].Amount.String())
	assert.InDelta(t, 12.5, holdings[0].UIAmount, 1e-12)

	assert.Equal(t, oddMint, holdings[1].Mint)
	assert.Empty(t, holdings[1].Symbol)
	assert.Equal(t, 7.0, holdings[1].UIAmount)
}

func TestGetPortfolio(t *testing.T) {
	node := &rpcNode{
		lamports: 2_000_000_000,
		accounts: []interface{}{
			tokenAccount("AccUSDC1", config.USDC_MINT, "10000000", 6),
			tokenAccount("AccUSDC2", config.USDC_MINT, "30000000", 6),
			tokenAccount("AccWSOL", config.NATIVE_SOL_MINT, "1000000000", 9),
			tokenAccount("AccOdd", oddMint, "5", 0),
		},
	}
	prices := &staticPrices{prices: map[string]float64{
		config.NATIVE_SOL_MINT: 20,
		config.USDC_MINT:       1,
	}}
	c, mock := newTestWallet(t, node, prices)

	p, err := c.GetPortfolio(context.Background(), testOwner)
	require.NoError(t, err)

	assert.Equal(t, testOwner, p.Owner)
	assert.Equal(t, mock.Now().UTC(), p.Timestamp)
	assert.InDelta(t, 100, p.TotalValueUSD, 1e-9) // 3 SOL * 20 + 40 USDC
	assert.Equal(t, []string{oddMint}, p.UnpricedMints)
	assert.ElementsMatch(t, []string{config.NATIVE_SOL_MINT, config.USDC_MINT, oddMint}, prices.asked)

	require.Len(t, p.Holdings, 3)
	sol := p.Holdings[0]
	assert.Equal(t, config.NATIVE_SOL_MINT, sol.Mint)
	assert.Equal(t, "3000000000", sol.Amount.String())
	assert.Empty(t, sol.Account)
	assert.InDelta(t, 60, sol.ValueUSD, 1e-9)
	assert.InDelta(t, 0.6, sol.Weight, 1e-9)

	usdc := p.Holdings[1]
	assert.Equal(t, "40000000", usdc.Amount.String())
	assert.InDelta(t, 0.4, usdc.Weight, 1e-9)

	assert.Equal(t, oddMint, p.Holdings[2].Mint)
	assert.Zero(t, p.Holdings[2].ValueUSD)
}

func TestGetPortfolioWithoutPrices(t *testing.T) {
	node := &rpcNode{lamports: 1_000_000_000}
	c, _ := newTestWallet(t, node, &staticPrices{err: errors.New("jupiter down")})

	p, err := c.GetPortfolio(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Zero(t, p.TotalValueUSD)
	assert.Equal(t, []string{config.NATIVE_SOL_MINT}, p.UnpricedMints)
	require.Len(t, p.Holdings, 1)
	assert.InDelta(t, 1, p.Holdings[0].UIAmount, 1e-12)
}
