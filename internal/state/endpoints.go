package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/varayield/varayield/internal/rpcfallback"
)

// EndpointSnapshot is the endpoint table as seen by one health check.
// Endpoint URLs are stored as given; callers redact them first.
type EndpointSnapshot struct {
	ID             int64                  `json:"id"`
	CapturedAt     time.Time              `json:"captured_at"`
	ActiveEndpoint string                 `json:"active_endpoint,omitempty"`
	Endpoints      []rpcfallback.Endpoint `json:"endpoints"`
}

// LiveCount is the number of endpoints marked live in the snapshot.
func (s EndpointSnapshot) LiveCount() int {
	n := 0
	for _, ep := range s.Endpoints {
		if ep.IsLive {
			n++
		}
	}
	return n
}

// SaveEndpointSnapshot stores a snapshot and returns its id.
func (s *Store) SaveEndpointSnapshot(ctx context.Context, snap EndpointSnapshot) (int64, error) {
	endpointsJSON, err := json.Marshal(snap.Endpoints)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal endpoints: %w", err)
	}

	query := `
		INSERT INTO endpoint_snapshots (captured_at, active_endpoint, live_count, endpoints)
		VALUES ($1, $2, $3, $4)
		RETURNING snapshot_id
	`
	var id int64
	err = s.db.QueryRowContext(ctx, query, snap.CapturedAt, snap.ActiveEndpoint, snap.LiveCount(), endpointsJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save endpoint snapshot: %w", err)
	}

	stateLogger.Debug().Int64("snapshot_id", id).Int("live", snap.LiveCount()).Msg("Endpoint snapshot saved")
	return id, nil
}

// GetEndpointHistory returns up to limit snapshots, newest first.
func (s *Store) GetEndpointHistory(ctx context.Context, limit int) ([]EndpointSnapshot, error) {
	limit = clampLimit(limit)

	query := `
		SELECT snapshot_id, captured_at, active_endpoint, endpoints
		FROM endpoint_snapshots
		ORDER BY captured_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint history: %w", err)
	}
	defer rows.Close()

	history := make([]EndpointSnapshot, 0, limit)
	for rows.Next() {
		var snap EndpointSnapshot
		var raw []byte
		if err := rows.Scan(&snap.ID, &snap.CapturedAt, &snap.ActiveEndpoint, &raw); err != nil {
			stateLogger.Error().Err(err).Msg("Failed to scan endpoint snapshot row")
			continue
		}
		if err := json.Unmarshal(raw, &snap.Endpoints); err != nil {
			stateLogger.Error().Err(err).Int64("snapshot_id", snap.ID).Msg("Failed to decode endpoint snapshot")
			continue
		}
		history = append(history, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return history, nil
}
