package store

import (
	"context"
	"fmt"

	"github.com/velotype/velotype/internal/metrics"
)

// AppendKeystrokes writes a batch of keystroke records in one transaction.
// The log is append-only: nothing updates or deletes rows, and read order
// is insertion order, so a session's log replays exactly as it was typed.
func (s *Store) AppendKeystrokes(ctx context.Context, records []metrics.Keystroke) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append keystrokes: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO keystrokes
		(session_id, char_expected, char_typed, event_type,
		 timestamp_ms, cursor_index, is_backspace, is_correct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append keystrokes: prepare: %w", err)
	}
	defer stmt.Close()

	for _, k := range records {
		if _, err := stmt.ExecContext(ctx,
			k.SessionID, k.CharExpected, k.CharTyped, string(k.EventType),
			k.TimestampMs, k.CursorIndex, k.IsBackspace, k.IsCorrect,
		); err != nil {
			return fmt.Errorf("append keystroke for session %s: %w", k.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append keystrokes: commit: %w", err)
	}
	return nil
}

// Keystrokes loads a session's full log in insertion order.
func (s *Store) Keystrokes(ctx context.Context, sessionID string) ([]metrics.Keystroke, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, char_expected, char_typed, event_type,
		       timestamp_ms, cursor_index, is_backspace, is_correct
		FROM keystrokes
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load keystrokes for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []metrics.Keystroke
	for rows.Next() {
		var k metrics.Keystroke
		var eventType string
		if err := rows.Scan(
			&k.SessionID, &k.CharExpected, &k.CharTyped, &eventType,
			&k.TimestampMs, &k.CursorIndex, &k.IsBackspace, &k.IsCorrect,
		); err != nil {
			return nil, fmt.Errorf("scan keystroke: %w", err)
		}
		k.EventType = metrics.EventType(eventType)
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keystrokes: %w", err)
	}
	return out, nil
}
