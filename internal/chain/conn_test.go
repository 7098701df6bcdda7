package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varayield/varayield/internal/rpcfallback"
)

const testOwner = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// fakeSolanaNode answers JSON-RPC calls from a method->result table.
type fakeSolanaNode struct {
	mu      sync.Mutex
	results map[string]interface{}
	errors  map[string]string
	methods []string
	params  []json.RawMessage
}

func (n *fakeSolanaNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.methods = append(n.methods, req.Method)
	n.params = append(n.params, req.Params)
	result, ok := n.results[req.Method]
	msg, failed := n.errors[req.Method]
	n.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case failed:
		resp["error"] = map[string]interface{}{"code": -32005, "message": msg}
	case ok:
		resp["result"] = result
	default:
		resp["error"] = map[string]interface{}{"code": -32601, "message": "Method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeSolanaNode) calls() ([]string, []json.RawMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.methods...), append([]json.RawMessage(nil), n.params...)
}

func (n *fakeSolanaNode) setResult(method string, result interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results[method] = result
}

func (n *fakeSolanaNode) setError(method, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors[method] = message
}

func newNode(t *testing.T) (*fakeSolanaNode, *Conn) {
	t.Helper()
	node := &fakeSolanaNode{results: map[string]interface{}{}, errors: map[string]string{}}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	conn, err := NewDialer(time.Second, nil).Dial(rpcfallback.Endpoint{URL: srv.URL, Name: "Primary", IsLive: true})
	require.NoError(t, err)
	return node, conn
}

func TestDialRejectsInvalidURLs(t *testing.T) {
	d := NewDialer(0, nil)
	for _, raw := range []string{"", "ftp://node.example", "wss://node.example", "https://", "://bad"} {
		_, err := d.Dial(rpcfallback.Endpoint{URL: raw})
		assert.ErrorIs(t, err, ErrInvalidEndpointURL, raw)
	}
	assert.Equal(t, DEFAULT_HTTP_TIMEOUT, d.httpClient.Timeout)
}

func TestProbeUsesGetSlot(t *testing.T) {
	node, conn := newNode(t)
	node.setResult("getSlot", 287_654_321)

	require.NoError(t, conn.Probe(context.Background()))
	slot, err := conn.GetSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(287_654_321), slot)
	methods, _ := node.calls()
	assert.Equal(t, []string{"getSlot", "getSlot"}, methods)
	assert.Equal(t, "Primary", conn.Endpoint().Name)
}

func TestProbeFailsOnRPCError(t *testing.T) {
	node, conn := newNode(t)
	node.setError("getSlot", "Node is unhealthy")

	err := conn.Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Node is unhealthy")
}

func TestProbeFailsWhenNodeIsDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	conn, err := NewDialer(time.Second, nil).Dial(rpcfallback.Endpoint{URL: url, Name: "Down"})
	require.NoError(t, err)
	assert.Error(t, conn.Probe(context.Background()))
}

func TestGetBalance(t *testing.T) {
	node, conn := newNode(t)
	node.setResult("getBalance", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   1_500_000_000,
	})

	lamports, err := conn.GetBalance(context.Background(), solana.MustPublicKeyFromBase58(testOwner))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), lamports)

	_, raw := node.calls()
	var params []interface{}
	require.NoError(t, json.Unmarshal(raw[0], &params))
	assert.Equal(t, testOwner, params[0])
}

func TestGetParsedTokenAccounts(t *testing.T) {
	node, conn := newNode(t)
	node.setResult("getTokenAccountsByOwner", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": []interface{}{
			map[string]interface{}{
				"pubkey": "AccOne",
				"account": map[string]interface{}{
					"data": map[string]interface{}{
						"program": "spl-token",
						"parsed": map[string]interface{}{
							"type": "account",
							"info": map[string]interface{}{
								"mint":  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
								"owner": testOwner,
								"tokenAmount": map[string]interface{}{
									"amount":         "2500000",
									"decimals":       6,
									"uiAmountString": "2.5",
								},
							},
						},
					},
				},
			},
			map[string]interface{}{
				"pubkey":  "AccRaw",
				"account": map[string]interface{}{"data": map[string]interface{}{"program": "spl-token"}},
			},
		},
	})

	accounts, err := conn.GetParsedTokenAccounts(context.Background(), solana.MustPublicKeyFromBase58(testOwner))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, TokenAccount{
		Address:  "AccOne",
		Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Owner:    testOwner,
		Amount:   "2500000",
		Decimals: 6,
	}, accounts[0])

	_, raw := node.calls()
	var params []interface{}
	require.NoError(t, json.Unmarshal(raw[0], &params))
	require.Len(t, params, 3)
	assert.Equal(t, map[string]interface{}{"programId": solana.TokenProgramID.String()}, params[1])
	assert.Equal(t, "jsonParsed", params[2].(map[string]interface{})["encoding"])
}

func TestFallbackClientOverSolanaConns(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer down.Close()
	node := &fakeSolanaNode{results: map[string]interface{}{"getSlot": 10}, errors: map[string]string{}}
	up := httptest.NewServer(node)
	defer up.Close()

	endpoints, err := rpcfallback.NewEndpoints(down.URL, up.URL)
	require.NoError(t, err)
	client, err := rpcfallback.New(rpcfallback.Config[*Conn]{
		Endpoints:    endpoints,
		Dial:         NewDialer(time.Second, nil).Dial,
		ProbeTimeout: time.Second,
	})
	require.NoError(t, err)

	conn, err := client.GetWorkingConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, up.URL, conn.Endpoint().URL)
	assert.Equal(t, 1, client.GetEndpointStatus()[0].ErrorCount)
}
