package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/velotype/velotype/internal/race"
)

// CreateRace inserts a freshly created race snapshot. The row carries the
// identity columns exactly once; all later writes go through SaveRace and
// never touch them.
func (s *Store) CreateRace(ctx context.Context, snap race.Snapshot) error {
	cols := flatten(snap)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO races
		(id, room_code, status, expected_text, host_id,
		 host_progress, host_wpm, host_accuracy, host_finished_at,
		 opponent_id, opponent_is_bot, opponent_bot_level,
		 opponent_progress, opponent_wpm, opponent_accuracy, opponent_finished_at,
		 countdown_started_at, started_at, ended_at, winner_id, cancel_reason,
		 version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID, snap.RoomCode, string(snap.Status), snap.ExpectedText, snap.HostID,
		cols.hostProgress, cols.hostWPM, cols.hostAccuracy, cols.hostFinishedAt,
		cols.opponentID, cols.opponentIsBot, cols.opponentBotLevel,
		cols.opponentProgress, cols.opponentWPM, cols.opponentAccuracy, cols.opponentFinishedAt,
		snap.CountdownStartedAtMs, snap.StartedAtMs, snap.EndedAtMs, snap.WinnerID, snap.CancelReason,
		snap.Version, snap.CreatedAtMs, snap.UpdatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("create race %s: %w", snap.ID, err)
	}
	return nil
}

// SaveRace writes an updated snapshot iff the stored version is exactly
// one behind the snapshot's - the compare-and-swap at the heart of the
// optimistic concurrency protocol. A stale writer gets ErrVersionConflict
// and must re-fetch; an unknown race gets ErrNotFound.
//
// Identity columns (room_code, expected_text, host_id, created_at) are
// deliberately absent from the UPDATE: no code path can alter them.
func (s *Store) SaveRace(ctx context.Context, snap race.Snapshot) error {
	cols := flatten(snap)
	res, err := s.db.ExecContext(ctx, `
		UPDATE races SET
			status = ?,
			host_progress = ?, host_wpm = ?, host_accuracy = ?, host_finished_at = ?,
			opponent_id = ?, opponent_is_bot = ?, opponent_bot_level = ?,
			opponent_progress = ?, opponent_wpm = ?, opponent_accuracy = ?, opponent_finished_at = ?,
			countdown_started_at = ?, started_at = ?, ended_at = ?,
			winner_id = ?, cancel_reason = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		string(snap.Status),
		cols.hostProgress, cols.hostWPM, cols.hostAccuracy, cols.hostFinishedAt,
		cols.opponentID, cols.opponentIsBot, cols.opponentBotLevel,
		cols.opponentProgress, cols.opponentWPM, cols.opponentAccuracy, cols.opponentFinishedAt,
		snap.CountdownStartedAtMs, snap.StartedAtMs, snap.EndedAtMs,
		snap.WinnerID, snap.CancelReason,
		snap.Version, snap.UpdatedAtMs,
		snap.ID, snap.Version-1,
	)
	if err != nil {
		return fmt.Errorf("save race %s: %w", snap.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save race %s: rows affected: %w", snap.ID, err)
	}
	if n == 0 {
		// Distinguish a missing race from a lost CAS.
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM races WHERE id = ?`, snap.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("save race %s: %w", snap.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("save race %s: %w", snap.ID, err)
		}
		return fmt.Errorf("save race %s at version %d: %w", snap.ID, snap.Version-1, ErrVersionConflict)
	}
	return nil
}

// GetRace loads a race snapshot by ID.
func (s *Store) GetRace(ctx context.Context, id string) (race.Snapshot, error) {
	return s.getRace(ctx, `WHERE id = ?`, id)
}

// GetRaceByRoomCode loads a race snapshot by its join code.
func (s *Store) GetRaceByRoomCode(ctx context.Context, roomCode string) (race.Snapshot, error) {
	return s.getRace(ctx, `WHERE room_code = ?`, roomCode)
}

func (s *Store) getRace(ctx context.Context, where string, arg any) (race.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_code, status, expected_text, host_id,
		       host_progress, host_wpm, host_accuracy, host_finished_at,
		       opponent_id, opponent_is_bot, opponent_bot_level,
		       opponent_progress, opponent_wpm, opponent_accuracy, opponent_finished_at,
		       countdown_started_at, started_at, ended_at, winner_id, cancel_reason,
		       version, created_at, updated_at
		FROM races `+where, arg)

	var (
		snap   race.Snapshot
		status string
		host   race.Participant
		opp    race.Participant
		oppID  sql.NullString
		oppBot bool
	)
	err := row.Scan(
		&snap.ID, &snap.RoomCode, &status, &snap.ExpectedText, &snap.HostID,
		&host.Progress, &host.WPM, &host.Accuracy, &host.FinishedAtMs,
		&oppID, &oppBot, &opp.BotLevel,
		&opp.Progress, &opp.WPM, &opp.Accuracy, &opp.FinishedAtMs,
		&snap.CountdownStartedAtMs, &snap.StartedAtMs, &snap.EndedAtMs,
		&snap.WinnerID, &snap.CancelReason,
		&snap.Version, &snap.CreatedAtMs, &snap.UpdatedAtMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return race.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return race.Snapshot{}, fmt.Errorf("get race: %w", err)
	}

	snap.Status = race.Status(status)
	host.ID = snap.HostID
	snap.Host = host
	if oppID.Valid && oppID.String != "" {
		opp.ID = oppID.String
		opp.IsBot = oppBot
		snap.Opponent = &opp
	}
	return snap, nil
}

// raceColumns flattens the participant slots into nullable columns.
type raceColumns struct {
	hostProgress, hostWPM, hostAccuracy float64
	hostFinishedAt                      int64

	opponentID         sql.NullString
	opponentIsBot      bool
	opponentBotLevel   string
	opponentProgress   float64
	opponentWPM        float64
	opponentAccuracy   float64
	opponentFinishedAt int64
}

func flatten(snap race.Snapshot) raceColumns {
	c := raceColumns{
		hostProgress:     snap.Host.Progress,
		hostWPM:          snap.Host.WPM,
		hostAccuracy:     snap.Host.Accuracy,
		hostFinishedAt:   snap.Host.FinishedAtMs,
		opponentAccuracy: race.MaxAccuracy,
	}
	if snap.Opponent != nil {
		c.opponentID = sql.NullString{String: snap.Opponent.ID, Valid: true}
		c.opponentIsBot = snap.Opponent.IsBot
		c.opponentBotLevel = snap.Opponent.BotLevel
		c.opponentProgress = snap.Opponent.Progress
		c.opponentWPM = snap.Opponent.WPM
		c.opponentAccuracy = snap.Opponent.Accuracy
		c.opponentFinishedAt = snap.Opponent.FinishedAtMs
	}
	return c
}
