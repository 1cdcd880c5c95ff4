package race

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes state machine rejections.
type ErrorKind string

const (
	// KindInvalidTransition means the status graph has no such edge.
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"

	// KindParticipantConflict means the opponent slot is already taken.
	KindParticipantConflict ErrorKind = "PARTICIPANT_CONFLICT"

	// KindParticipantNotFound means the participant ID matches neither side.
	KindParticipantNotFound ErrorKind = "PARTICIPANT_NOT_FOUND"

	// KindWrongStatus means the operation is not legal in the current status.
	KindWrongStatus ErrorKind = "WRONG_STATUS"

	// KindMissingOpponent means the operation needs a second participant.
	KindMissingOpponent ErrorKind = "MISSING_OPPONENT"
)

// StateError is a synchronous rejection from a transition function.
// Callers must discard the command and must not persist any state change.
// None of these are retried internally; retry policy belongs to the caller,
// informed by the snapshot Version.
type StateError struct {
	Kind    ErrorKind
	Message string

	// RaceID identifies the affected race.
	RaceID string

	// Status is the race status at rejection time.
	Status Status

	// ParticipantID is set for participant-related rejections.
	ParticipantID string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.ParticipantID != "" {
		return fmt.Sprintf("%s: %s (race=%s, status=%s, participant=%s)",
			e.Kind, e.Message, e.RaceID, e.Status, e.ParticipantID)
	}
	return fmt.Sprintf("%s: %s (race=%s, status=%s)", e.Kind, e.Message, e.RaceID, e.Status)
}

// IsKind reports whether err is (or wraps) a StateError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *StateError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// IsInvalidTransition reports whether err is an INVALID_TRANSITION rejection.
func IsInvalidTransition(err error) bool { return IsKind(err, KindInvalidTransition) }

// IsParticipantConflict reports whether err is a PARTICIPANT_CONFLICT rejection.
func IsParticipantConflict(err error) bool { return IsKind(err, KindParticipantConflict) }

// IsParticipantNotFound reports whether err is a PARTICIPANT_NOT_FOUND rejection.
func IsParticipantNotFound(err error) bool { return IsKind(err, KindParticipantNotFound) }

// IsWrongStatus reports whether err is a WRONG_STATUS rejection.
func IsWrongStatus(err error) bool { return IsKind(err, KindWrongStatus) }

// IsMissingOpponent reports whether err is a MISSING_OPPONENT rejection.
func IsMissingOpponent(err error) bool { return IsKind(err, KindMissingOpponent) }

func invalidTransition(s Snapshot, to Status) *StateError {
	return &StateError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("no edge %s -> %s", s.Status, to),
		RaceID:  s.ID,
		Status:  s.Status,
	}
}

func wrongStatus(s Snapshot, op string) *StateError {
	return &StateError{
		Kind:    KindWrongStatus,
		Message: fmt.Sprintf("%s is not legal while %s", op, s.Status),
		RaceID:  s.ID,
		Status:  s.Status,
	}
}

func participantConflict(s Snapshot, id string) *StateError {
	return &StateError{
		Kind:          KindParticipantConflict,
		Message:       "opponent slot already taken",
		RaceID:        s.ID,
		Status:        s.Status,
		ParticipantID: id,
	}
}

func participantNotFound(s Snapshot, id string) *StateError {
	return &StateError{
		Kind:          KindParticipantNotFound,
		Message:       "participant is not part of this race",
		RaceID:        s.ID,
		Status:        s.Status,
		ParticipantID: id,
	}
}

func missingOpponent(s Snapshot, op string) *StateError {
	return &StateError{
		Kind:    KindMissingOpponent,
		Message: fmt.Sprintf("%s requires an opponent", op),
		RaceID:  s.ID,
		Status:  s.Status,
	}
}
