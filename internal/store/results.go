package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/velotype/velotype/internal/metrics"
)

// Result is a participant's canonical outcome for one race: the
// server-recomputed metrics plus any integrity flags raised while
// verifying the client's own figures. Flags never change the persisted
// metrics - the canonical recomputation is authoritative.
type Result struct {
	RaceID        string                 `json:"race_id"`
	ParticipantID string                 `json:"participant_id"`
	Metrics       metrics.SessionMetrics `json:"metrics"`
	Flagged       bool                   `json:"flagged"`
	Flags         []string               `json:"flags,omitempty"`
	CreatedAtMs   int64                  `json:"created_at_ms"`
}

// SaveResult writes a participant's canonical result. Idempotent via
// ON CONFLICT DO NOTHING: a race completes once, and a retried write of
// the same (race, participant) pair is silently ignored.
func (s *Store) SaveResult(ctx context.Context, r Result) error {
	metricsJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("save result: marshal metrics: %w", err)
	}
	flagsJSON, err := json.Marshal(r.Flags)
	if err != nil {
		return fmt.Errorf("save result: marshal flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO race_results
		(race_id, participant_id, metrics, flagged, flags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(race_id, participant_id) DO NOTHING
	`,
		r.RaceID, r.ParticipantID, string(metricsJSON), r.Flagged, string(flagsJSON), r.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("save result for %s/%s: %w", r.RaceID, r.ParticipantID, err)
	}
	return nil
}

// GetResult loads one participant's result for a race.
func (s *Store) GetResult(ctx context.Context, raceID, participantID string) (Result, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT race_id, participant_id, metrics, flagged, flags, created_at
		FROM race_results
		WHERE race_id = ? AND participant_id = ?
	`, raceID, participantID)

	var (
		r           Result
		metricsJSON string
		flagsJSON   string
	)
	err := row.Scan(&r.RaceID, &r.ParticipantID, &metricsJSON, &r.Flagged, &flagsJSON, &r.CreatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("get result: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &r.Metrics); err != nil {
		return Result{}, fmt.Errorf("get result: unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(flagsJSON), &r.Flags); err != nil {
		return Result{}, fmt.Errorf("get result: unmarshal flags: %w", err)
	}
	return r, nil
}
