package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/varayield/varayield/internal/types"
)

// RunSummary aggregates the stored optimization history.
type RunSummary struct {
	TotalRuns       int        `json:"total_runs"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	AvgAPRGain      float64    `json:"avg_apr_gain"`
	AvgActionsCount float64    `json:"avg_actions_count"`
}

// SaveOptimizationRun stores a run. The full result is kept as JSONB; the scalar
// columns exist for ordering and aggregation.
func (s *Store) SaveOptimizationRun(ctx context.Context, result types.OptimizationResult) error {
	if result.ID == "" {
		return errors.New("optimization run has no id")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal optimization result: %w", err)
	}

	query := `
		INSERT INTO optimization_runs (
			run_id, created_at, total_value_usd, expected_apr_before, expected_apr_after, action_count, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		result.ID, result.CreatedAt, result.TotalValueUSD,
		result.ExpectedAPRBefore, result.ExpectedAPRAfter, len(result.Actions), resultJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save optimization run %s: %w", result.ID, err)
	}

	stateLogger.Info().
		Str("run_id", result.ID).
		Float64("total_value_usd", result.TotalValueUSD).
		Int("actions", len(result.Actions)).
		Msg("Optimization run saved")
	return nil
}

// GetRecentRuns returns up to limit runs, newest first. Rows that fail to decode are skipped.
func (s *Store) GetRecentRuns(ctx context.Context, limit int) ([]types.OptimizationResult, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `SELECT run_id, result FROM optimization_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]types.OptimizationResult, 0, limit)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			stateLogger.Error().Err(err).Msg("Failed to scan optimization run row")
			continue
		}
		var run types.OptimizationResult
		if err := json.Unmarshal(raw, &run); err != nil {
			stateLogger.Error().Err(err).Str("run_id", id).Msg("Failed to decode optimization run")
			continue
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	stateLogger.Debug().Int("count", len(runs)).Int("limit", limit).Msg("Retrieved recent runs")
	return runs, nil
}

// GetRunByID returns one run or ErrNotFound.
func (s *Store) GetRunByID(ctx context.Context, id string) (types.OptimizationResult, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT result FROM optimization_runs WHERE run_id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.OptimizationResult{}, fmt.Errorf("optimization run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to query optimization run %s: %w", id, err)
	}

	var run types.OptimizationResult
	if err := json.Unmarshal(raw, &run); err != nil {
		return types.OptimizationResult{}, fmt.Errorf("failed to decode optimization run %s: %w", id, err)
	}
	return run, nil
}

// GetRunSummary aggregates every stored run.
func (s *Store) GetRunSummary(ctx context.Context) (RunSummary, error) {
	query := `
		SELECT
			COUNT(*),
			MAX(created_at),
			COALESCE(AVG(expected_apr_after - expected_apr_before), 0),
			COALESCE(AVG(action_count), 0)
		FROM optimization_runs
	`
	var summary RunSummary
	var lastRun sql.NullTime
	err := s.db.QueryRowContext(ctx, query).Scan(&summary.TotalRuns, &lastRun, &summary.AvgAPRGain, &summary.AvgActionsCount)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to summarize optimization runs: %w", err)
	}
	if lastRun.Valid {
		t := lastRun.Time
		summary.LastRunAt = &t
	}
	return summary, nil
}
