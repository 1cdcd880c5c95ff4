package race

// New creates a race in waiting status at version 0. The host participant
// starts zeroed with the perfect-accuracy convention; the opponent slot is
// empty until AddOpponent.
func New(id, roomCode, hostID, expectedText string, nowMs int64) Snapshot {
	return Snapshot{
		ID:           id,
		RoomCode:     roomCode,
		Status:       StatusWaiting,
		ExpectedText: expectedText,
		HostID:       hostID,
		Host:         newParticipant(hostID, false, ""),
		CreatedAtMs:  nowMs,
		UpdatedAtMs:  nowMs,
	}
}

// AddOpponent seats a second participant. Legal only while waiting and only
// once: a filled slot is a PARTICIPANT_CONFLICT, any other status is a
// WRONG_STATUS.
func AddOpponent(s Snapshot, opponentID string, isBot bool, botLevel string, nowMs int64) (Snapshot, error) {
	if s.Status != StatusWaiting {
		return Snapshot{}, wrongStatus(s, "addOpponent")
	}
	if s.Opponent != nil {
		return Snapshot{}, participantConflict(s, opponentID)
	}
	out := s.clone()
	opp := newParticipant(opponentID, isBot, botLevel)
	out.Opponent = &opp
	out.bump(nowMs)
	return out, nil
}

// StartCountdown moves a waiting race into countdown and stamps
// CountdownStartedAtMs. Idempotent: if the countdown is already running the
// input snapshot is returned with changed=false and no version bump, which
// callers must treat as "do not persist, do not re-broadcast". A missing
// opponent or a structurally invalid transition is an error, not a no-op.
//
// The idempotency key a client may attach to the triggering command plays
// no role here; the changed=false signal already makes retries safe.
func StartCountdown(s Snapshot, nowMs int64) (Snapshot, bool, error) {
	if s.Status == StatusCountdown {
		return s, false, nil
	}
	if !ValidTransition(s.Status, StatusCountdown) {
		return Snapshot{}, false, invalidTransition(s, StatusCountdown)
	}
	if s.Opponent == nil {
		return Snapshot{}, false, missingOpponent(s, "startCountdown")
	}
	out := s.clone()
	out.Status = StatusCountdown
	out.CountdownStartedAtMs = nowMs
	out.bump(nowMs)
	return out, true, nil
}

// StartRace moves a countdown race into active and stamps StartedAtMs.
// Idempotent identically to StartCountdown.
func StartRace(s Snapshot, nowMs int64) (Snapshot, bool, error) {
	if s.Status == StatusActive {
		return s, false, nil
	}
	if !ValidTransition(s.Status, StatusActive) {
		return Snapshot{}, false, invalidTransition(s, StatusActive)
	}
	out := s.clone()
	out.Status = StatusActive
	out.StartedAtMs = nowMs
	out.bump(nowMs)
	return out, true, nil
}

// UpdateProgress applies a participant's progress/wpm/accuracy figures.
// Legal only while active. Inputs are clamped to their documented ranges,
// so the output always satisfies 0<=progress<=100, 0<=wpm<=500,
// 0<=accuracy<=100 regardless of what the client sent. The first instant
// progress reaches 100 stamps FinishedAtMs; it is never overwritten by
// later updates.
func UpdateProgress(s Snapshot, participantID string, progress, wpm, accuracy float64, nowMs int64) (Snapshot, error) {
	if s.Status != StatusActive {
		return Snapshot{}, wrongStatus(s, "updateProgress")
	}
	p, ok := s.participant(participantID)
	if !ok {
		return Snapshot{}, participantNotFound(s, participantID)
	}

	p.Progress = clamp(progress, MaxProgress)
	p.WPM = clamp(wpm, MaxWPM)
	p.Accuracy = clamp(accuracy, MaxAccuracy)
	if p.Progress >= MaxProgress && p.FinishedAtMs == 0 {
		p.FinishedAtMs = nowMs
	}

	out := s.clone()
	if participantID == s.HostID {
		out.Host = p
	} else {
		out.Opponent = &p
	}
	out.bump(nowMs)
	return out, nil
}

// Complete finishes an active race, determines the winner and stamps
// EndedAtMs. Idempotent: an already-completed race is returned unchanged
// with changed=false.
//
// Winner determination is a strict total order, applied in priority order:
//
//  1. a participant who reached 100% and finished earlier than the other
//     (or is the only one to finish) wins outright;
//  2. otherwise the strictly higher progress wins;
//  3. otherwise the higher WPM wins;
//  4. on a full tie the host wins, so the result is deterministic.
func Complete(s Snapshot, nowMs int64) (Snapshot, bool, error) {
	if s.Status == StatusCompleted {
		return s, false, nil
	}
	if !ValidTransition(s.Status, StatusCompleted) {
		return Snapshot{}, false, invalidTransition(s, StatusCompleted)
	}
	if s.Opponent == nil {
		return Snapshot{}, false, missingOpponent(s, "completeRace")
	}
	out := s.clone()
	out.Status = StatusCompleted
	out.EndedAtMs = nowMs
	out.WinnerID = winner(out.Host, *out.Opponent)
	out.bump(nowMs)
	return out, true, nil
}

// winner implements the documented total order over two participants.
func winner(host, opp Participant) string {
	hostDone := host.Finished()
	oppDone := opp.Finished()
	switch {
	case hostDone && oppDone:
		if opp.FinishedAtMs < host.FinishedAtMs {
			return opp.ID
		}
		if host.FinishedAtMs < opp.FinishedAtMs {
			return host.ID
		}
	case hostDone:
		return host.ID
	case oppDone:
		return opp.ID
	}
	if host.Progress != opp.Progress {
		if host.Progress > opp.Progress {
			return host.ID
		}
		return opp.ID
	}
	if opp.WPM > host.WPM {
		return opp.ID
	}
	return host.ID
}

// Cancel aborts a race from any non-terminal status, recording the reason
// and stamping EndedAtMs. Idempotent no-op from completed or cancelled.
func Cancel(s Snapshot, reason string, nowMs int64) (Snapshot, bool, error) {
	if Terminal(s.Status) {
		return s, false, nil
	}
	if !ValidTransition(s.Status, StatusCancelled) {
		return Snapshot{}, false, invalidTransition(s, StatusCancelled)
	}
	out := s.clone()
	out.Status = StatusCancelled
	out.CancelReason = reason
	out.EndedAtMs = nowMs
	out.bump(nowMs)
	return out, true, nil
}
