package race

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireSnapshot is the persisted/broadcast shape of a race. Participants are
// flattened into host_*/opponent_* columns and timestamps travel as
// ISO-8601 strings. Internally everything stays epoch-ms.
type wireSnapshot struct {
	ID           string `json:"id"`
	RoomCode     string `json:"room_code"`
	Status       string `json:"status"`
	ExpectedText string `json:"expected_text"`

	HostID         string  `json:"host_id"`
	HostProgress   float64 `json:"host_progress"`
	HostWPM        float64 `json:"host_wpm"`
	HostAccuracy   float64 `json:"host_accuracy"`
	HostFinishedAt string  `json:"host_finished_at,omitempty"`

	OpponentID         string  `json:"opponent_id,omitempty"`
	OpponentIsBot      bool    `json:"opponent_is_bot,omitempty"`
	OpponentBotLevel   string  `json:"opponent_bot_level,omitempty"`
	OpponentProgress   float64 `json:"opponent_progress,omitempty"`
	OpponentWPM        float64 `json:"opponent_wpm,omitempty"`
	OpponentAccuracy   float64 `json:"opponent_accuracy,omitempty"`
	OpponentFinishedAt string  `json:"opponent_finished_at,omitempty"`

	CountdownStartedAt string `json:"countdown_started_at,omitempty"`
	StartedAt          string `json:"started_at,omitempty"`
	EndedAt            string `json:"ended_at,omitempty"`
	WinnerID           string `json:"winner_id,omitempty"`
	CancelReason       string `json:"cancel_reason,omitempty"`

	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// isoMs formats an epoch-ms timestamp as an ISO-8601 UTC string with
// millisecond precision. Zero (unset) maps to the empty string.
func isoMs(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// parseISOMs is the inverse of isoMs. Empty means unset.
func parseISOMs(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UnixMilli(), nil
}

// Marshal serializes a snapshot to its wire JSON.
func Marshal(s Snapshot) ([]byte, error) {
	w := wireSnapshot{
		ID:           s.ID,
		RoomCode:     s.RoomCode,
		Status:       string(s.Status),
		ExpectedText: s.ExpectedText,

		HostID:         s.HostID,
		HostProgress:   s.Host.Progress,
		HostWPM:        s.Host.WPM,
		HostAccuracy:   s.Host.Accuracy,
		HostFinishedAt: isoMs(s.Host.FinishedAtMs),

		CountdownStartedAt: isoMs(s.CountdownStartedAtMs),
		StartedAt:          isoMs(s.StartedAtMs),
		EndedAt:            isoMs(s.EndedAtMs),
		WinnerID:           s.WinnerID,
		CancelReason:       s.CancelReason,

		Version:   s.Version,
		CreatedAt: isoMs(s.CreatedAtMs),
		UpdatedAt: isoMs(s.UpdatedAtMs),
	}
	if s.Opponent != nil {
		w.OpponentID = s.Opponent.ID
		w.OpponentIsBot = s.Opponent.IsBot
		w.OpponentBotLevel = s.Opponent.BotLevel
		w.OpponentProgress = s.Opponent.Progress
		w.OpponentWPM = s.Opponent.WPM
		w.OpponentAccuracy = s.Opponent.Accuracy
		w.OpponentFinishedAt = isoMs(s.Opponent.FinishedAtMs)
	}
	return json.Marshal(w)
}

// Unmarshal deserializes wire JSON back into a snapshot. Marshal and
// Unmarshal round-trip losslessly.
func Unmarshal(data []byte) (Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal race snapshot: %w", err)
	}

	status := Status(w.Status)
	if _, ok := transitions[status]; !ok {
		return Snapshot{}, fmt.Errorf("unmarshal race snapshot: unknown status %q", w.Status)
	}

	s := Snapshot{
		ID:           w.ID,
		RoomCode:     w.RoomCode,
		Status:       status,
		ExpectedText: w.ExpectedText,
		HostID:       w.HostID,
		Host: Participant{
			ID:       w.HostID,
			Progress: w.HostProgress,
			WPM:      w.HostWPM,
			Accuracy: w.HostAccuracy,
		},
		WinnerID:     w.WinnerID,
		CancelReason: w.CancelReason,
		Version:      w.Version,
	}

	var err error
	if s.Host.FinishedAtMs, err = parseISOMs(w.HostFinishedAt); err != nil {
		return Snapshot{}, err
	}
	if s.CountdownStartedAtMs, err = parseISOMs(w.CountdownStartedAt); err != nil {
		return Snapshot{}, err
	}
	if s.StartedAtMs, err = parseISOMs(w.StartedAt); err != nil {
		return Snapshot{}, err
	}
	if s.EndedAtMs, err = parseISOMs(w.EndedAt); err != nil {
		return Snapshot{}, err
	}
	if s.CreatedAtMs, err = parseISOMs(w.CreatedAt); err != nil {
		return Snapshot{}, err
	}
	if s.UpdatedAtMs, err = parseISOMs(w.UpdatedAt); err != nil {
		return Snapshot{}, err
	}

	if w.OpponentID != "" {
		opp := Participant{
			ID:       w.OpponentID,
			IsBot:    w.OpponentIsBot,
			BotLevel: w.OpponentBotLevel,
			Progress: w.OpponentProgress,
			WPM:      w.OpponentWPM,
			Accuracy: w.OpponentAccuracy,
		}
		if opp.FinishedAtMs, err = parseISOMs(w.OpponentFinishedAt); err != nil {
			return Snapshot{}, err
		}
		s.Opponent = &opp
	}

	return s, nil
}
