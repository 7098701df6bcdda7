package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SOLANA_RPC_URL", "SOLANA_RPC_BACKUP_1", "SOLANA_RPC_BACKUP_2", "SOLANA_RPC_BACKUP_3", "SOLANA_RPC_BACKUP_4",
		"RPC_PROBE_TIMEOUT", "RPC_DEAD_THRESHOLD", "RPC_MAX_RETRIES", "RPC_BACKOFF_BASE", "RPC_BACKOFF_MAX",
		"RPC_REQUEST_TIMEOUT", "RPC_HEALTH_INTERVAL", "WEB_PORT", "GRPC_HEALTH_PORT", "DB_HOST", "DB_PORT",
		"PRICE_HISTORY_DAYS", "COINGECKO_API_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigRequiresPrimaryEndpoint(t *testing.T) {
	clearEnv(t)
	err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL")
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	t.Setenv("SOLANA_RPC_BACKUP_2", "https://solana-rpc.publicnode.com")

	require.NoError(t, LoadConfig())

	assert.Equal(t, "https://api.mainnet-beta.solana.com", SolanaRPCURL)
	assert.Equal(t, []string{"", "https://solana-rpc.publicnode.com", "", ""}, SolanaBackupURLs)
	assert.Equal(t, 5*time.Second, RPCProbeTimeout)
	assert.Equal(t, 3, RPCDeadThreshold)
	assert.Equal(t, 3, RPCMaxRetries)
	assert.Equal(t, time.Second, RPCBackoffBase)
	assert.Equal(t, 5*time.Second, RPCBackoffMax)
	assert.Equal(t, 30*time.Second, MonitorInterval)
	assert.Equal(t, "8080", WebPort)
	assert.Equal(t, "9090", GRPCHealthPort)
	assert.Equal(t, 5432, DBPort)
	assert.Empty(t, DBHost)
	assert.Equal(t, 30, PriceHistoryDays)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOLANA_RPC_URL", "https://primary.example")
	t.Setenv("RPC_PROBE_TIMEOUT", "2500")
	t.Setenv("RPC_DEAD_THRESHOLD", "5")
	t.Setenv("RPC_BACKOFF_MAX", "8s")
	t.Setenv("COINGECKO_API_URL", "https://pro-api.coingecko.com/api/v3/")

	require.NoError(t, LoadConfig())
	assert.Equal(t, 2500*time.Millisecond, RPCProbeTimeout)
	assert.Equal(t, 5, RPCDeadThreshold)
	assert.Equal(t, 8*time.Second, RPCBackoffMax)
	assert.Equal(t, "https://pro-api.coingecko.com/api/v3", CoinGeckoAPIURL)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"RPC_DEAD_THRESHOLD": "0",
		"RPC_MAX_RETRIES":    "many",
		"RPC_PROBE_TIMEOUT":  "-5s",
		"DB_PORT":            "postgres",
		"PRICE_HISTORY_DAYS": "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SOLANA_RPC_URL", "https://primary.example")
			t.Setenv(key, value)
			assert.Error(t, LoadConfig())
		})
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://mainnet.helius-rpc.com", RedactURL("https://mainnet.helius-rpc.com/?api-key=secret"))
	assert.Equal(t, "<invalid>", RedactURL("not a url"))
}

func TestCoinGeckoID(t *testing.T) {
	assert.Equal(t, "solana", CoinGeckoID("SOL"))
	assert.Equal(t, "solana", CoinGeckoID("solana"))
	assert.Equal(t, "jito-staked-sol", CoinGeckoID("JITOSOL"))
	assert.Equal(t, "dogwifcoin", CoinGeckoID("DogWifCoin"))

	tok, ok := TokenByMint(USDC_MINT)
	require.True(t, ok)
	assert.Equal(t, 6, tok.Decimals)
}
