package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// MAX_BACKUP_ENDPOINTS is the number of SOLANA_RPC_BACKUP_n variables read.
const MAX_BACKUP_ENDPOINTS = 4

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// SolanaRPCURL is the primary Solana JSON-RPC endpoint.
	SolanaRPCURL string
	// SolanaBackupURLs holds SOLANA_RPC_BACKUP_1..4 in order; unset entries are empty strings.
	SolanaBackupURLs []string

	// RPCProbeTimeout bounds each liveness probe.
	RPCProbeTimeout time.Duration
	// RPCDeadThreshold is the error count at which an endpoint is marked dead.
	RPCDeadThreshold int
	// RPCMaxRetries is the default attempt ceiling per fallback call.
	RPCMaxRetries int
	// RPCBackoffBase and RPCBackoffMax shape the retry backoff.
	RPCBackoffBase time.Duration
	RPCBackoffMax  time.Duration
	// RPCRequestTimeout bounds each HTTP request to an endpoint.
	RPCRequestTimeout time.Duration
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	SolanaRPCURL, err = getEnv("SOLANA_RPC_URL")
	if err != nil {
		return err
	}

	SolanaBackupURLs = make([]string, MAX_BACKUP_ENDPOINTS)
	for i := range SolanaBackupURLs {
		SolanaBackupURLs[i] = getEnvOrDefault(fmt.Sprintf("SOLANA_RPC_BACKUP_%d", i+1), "")
	}

	if RPCProbeTimeout, err = getEnvAsDurationOrDefault("RPC_PROBE_TIMEOUT", 5*time.Second); err != nil {
		return err
	}
	if RPCDeadThreshold, err = getEnvAsIntOrDefault("RPC_DEAD_THRESHOLD", 3); err != nil {
		return err
	}
	if RPCMaxRetries, err = getEnvAsIntOrDefault("RPC_MAX_RETRIES", 3); err != nil {
		return err
	}
	if RPCBackoffBase, err = getEnvAsDurationOrDefault("RPC_BACKOFF_BASE", time.Second); err != nil {
		return err
	}
	if RPCBackoffMax, err = getEnvAsDurationOrDefault("RPC_BACKOFF_MAX", 5*time.Second); err != nil {
		return err
	}
	if RPCRequestTimeout, err = getEnvAsDurationOrDefault("RPC_REQUEST_TIMEOUT", 15*time.Second); err != nil {
		return err
	}

	if RPCDeadThreshold < 1 {
		return errors.New("environment variable RPC_DEAD_THRESHOLD must be at least 1")
	}
	if RPCMaxRetries < 1 {
		return errors.New("environment variable RPC_MAX_RETRIES must be at least 1")
	}
	if RPCProbeTimeout == 0 {
		return errors.New("environment variable RPC_PROBE_TIMEOUT must be positive")
	}

	configured := 0
	for _, u := range SolanaBackupURLs {
		if u != "" {
			configured++
		}
	}

	log.Debug().
		Str("SolanaRPCHost", RedactURL(SolanaRPCURL)).
		Int("BackupEndpoints", configured).
		Dur("ProbeTimeout", RPCProbeTimeout).
		Int("DeadThreshold", RPCDeadThreshold).
		Int("MaxRetries", RPCMaxRetries).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// RedactURL reduces an endpoint URL to scheme and host. Provider URLs often embed API keys.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid>"
	}
	return u.Scheme + "://" + u.Host
}
