/*

This file manages the PostgreSQL connection pool and the schema used to persist
optimization runs and endpoint health snapshots. Persistence is optional: the
service runs without a Store and only loses history.

*/

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/varayield/varayield/internal/logger"
)

var stateLogger = logger.GetForComponent("state")

var (
	ErrNilDB    = errors.New("database handle cannot be nil")
	ErrNotFound = errors.New("record not found")
)

const (
	MAX_OPEN_CONNS    = 10
	CONN_MAX_LIFETIME = 5 * time.Minute
	PING_TIMEOUT      = 5 * time.Second

	DEFAULT_LIST_LIMIT = 10
	MAX_LIST_LIMIT     = 100
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the config as a lib/pq keyword/value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(c.Host), c.Port, quoteDSNValue(c.User), quoteDSNValue(c.Password),
		quoteDSNValue(c.DBName), quoteDSNValue(c.SSLMode))
}

// quoteDSNValue quotes values that would otherwise break keyword/value parsing.
func quoteDSNValue(v string) string {
	if v == "" {
		return "''"
	}
	needsQuote := false
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return v
	}
	out := []rune{'\''}
	for _, r := range v {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}

// Store persists optimization runs and endpoint snapshots.
type Store struct {
	db *sql.DB
}

// NewStore wraps an existing handle. Tests pass a sqlmock handle here.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, ErrNilDB
	}
	return &Store{db: db}, nil
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg DBConfig) (*Store, error) {
	connector, err := pq.NewConnector(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(MAX_OPEN_CONNS)
	db.SetMaxIdleConns(MAX_OPEN_CONNS)
	db.SetConnMaxLifetime(CONN_MAX_LIFETIME)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	stateLogger.Info().Str("host", cfg.Host).Str("database", cfg.DBName).Msg("Connected to PostgreSQL")
	return store, nil
}

// Ping checks the connection within PING_TIMEOUT.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, PING_TIMEOUT)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	stateLogger.Info().Msg("Closing database connection...")
	return s.db.Close()
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS optimization_runs (
		run_id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		total_value_usd DECIMAL(20, 8) NOT NULL,
		expected_apr_before DECIMAL(12, 6) NOT NULL,
		expected_apr_after DECIMAL(12, 6) NOT NULL,
		action_count INTEGER NOT NULL,
		result JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_optimization_runs_created_at ON optimization_runs(created_at DESC);

	CREATE TABLE IF NOT EXISTS endpoint_snapshots (
		snapshot_id BIGSERIAL PRIMARY KEY,
		captured_at TIMESTAMPTZ NOT NULL,
		active_endpoint TEXT NOT NULL DEFAULT '',
		live_count INTEGER NOT NULL,
		endpoints JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_endpoint_snapshots_captured_at ON endpoint_snapshots(captured_at DESC);
`

// EnsureSchema creates the tables if they don't exist. Safe to run on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	stateLogger.Debug().Msg("Database schema ensured")
	return nil
}

// DropSchema removes every table owned by the service.
func (s *Store) DropSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS optimization_runs, endpoint_snapshots CASCADE;`); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	stateLogger.Warn().Msg("Dropped all service tables")
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MAX_LIST_LIMIT {
		return DEFAULT_LIST_LIMIT
	}
	return limit
}
