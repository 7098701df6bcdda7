package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFile optionally mirrors logs to a file.
	LogFile string

	// WebPort is the port of the dashboard HTTP API.
	WebPort string
	// GRPCHealthPort is the port of the gRPC health service.
	GRPCHealthPort string
	// MonitorInterval is the period of the endpoint health loop.
	MonitorInterval time.Duration

	// CoinGeckoAPIURL is the base URL of the CoinGecko API.
	CoinGeckoAPIURL string
	// CoinGeckoAPIKey is sent as x-cg-demo-api-key when set.
	CoinGeckoAPIKey string
	// JupiterPriceAPIURL is the Jupiter price endpoint.
	JupiterPriceAPIURL string
	// PoolsAPIURL is the pool analytics list endpoint.
	PoolsAPIURL string
	// PriceHistoryDays is the number of days of hourly prices used for indicators.
	PriceHistoryDays int

	// DB settings. Persistence is disabled when DBHost is empty.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// SOLANA_RPC_URL is required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFile = getEnvOrDefault("LOG_FILE", "")
	WebPort = getEnvOrDefault("WEB_PORT", "8080")
	GRPCHealthPort = getEnvOrDefault("GRPC_HEALTH_PORT", "9090")

	MonitorInterval, err = getEnvAsDurationOrDefault("RPC_HEALTH_INTERVAL", 30*time.Second)
	if err != nil {
		return err
	}

	CoinGeckoAPIURL = strings.TrimRight(getEnvOrDefault("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"), "/")
	CoinGeckoAPIKey = getEnvOrDefault("COINGECKO_API_KEY", "")
	JupiterPriceAPIURL = getEnvOrDefault("JUPITER_PRICE_API_URL", "https://api.jup.ag/price/v2")
	PoolsAPIURL = getEnvOrDefault("POOLS_API_URL", "https://api-v3.raydium.io/pools/info/list")

	PriceHistoryDays, err = getEnvAsIntOrDefault("PRICE_HISTORY_DAYS", 30)
	if err != nil {
		return err
	}
	if PriceHistoryDays <= 0 {
		return errors.New("environment variable PRICE_HISTORY_DAYS must be positive")
	}

	DBHost = getEnvOrDefault("DB_HOST", "")
	DBPort, err = getEnvAsIntOrDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}
	DBUser = getEnvOrDefault("DB_USER", "")
	DBPassword = getEnvOrDefault("DB_PASSWORD", "")
	DBName = getEnvOrDefault("DB_NAME", "varayield")
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("WebPort", WebPort).
		Str("GRPCHealthPort", GRPCHealthPort).
		Dur("MonitorInterval", MonitorInterval).
		Bool("PersistenceEnabled", DBHost != "").
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, or def when unset or blank.
func getEnvOrDefault(key, def string) string {
	if value, err := getEnv(key); err == nil {
		return value
	}
	return def
}

// getEnvAsIntOrDefault retrieves an environment variable as an int. Returns error if set but invalid.
func getEnvAsIntOrDefault(key string, def int) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return def, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDurationOrDefault accepts Go durations ("5s") or plain milliseconds ("5000").
func getEnvAsDurationOrDefault(key string, def time.Duration) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return def, nil
	}
	if ms, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		if ms < 0 {
			return 0, errors.New("environment variable " + key + " cannot be negative, got: " + valueStr)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a duration like 5s or milliseconds, got: " + valueStr)
	}
	if value < 0 {
		return 0, errors.New("environment variable " + key + " cannot be negative, got: " + valueStr)
	}
	return value, nil
}
