package metrics

// EventType distinguishes key press from key release records.
type EventType string

const (
	EventKeyDown EventType = "keydown"
	EventKeyUp   EventType = "keyup"
)

// Keystroke is one append-only record of a typing session. Records are
// produced by a client (human or bot) and ordered by TimestampMs, assumed
// monotonic non-decreasing within a session.
type Keystroke struct {
	SessionID    string    `json:"session_id"`
	CharExpected string    `json:"char_expected"`
	CharTyped    string    `json:"char_typed"`
	EventType    EventType `json:"event_type"`
	TimestampMs  int64     `json:"timestamp_ms"`
	CursorIndex  int       `json:"cursor_index"`
	IsBackspace  bool      `json:"is_backspace"`
	IsCorrect    bool      `json:"is_correct"`
}

// counted reports whether a record contributes a typed character:
// a key press that is not a backspace.
func (k Keystroke) counted() bool {
	return k.EventType == EventKeyDown && !k.IsBackspace
}
