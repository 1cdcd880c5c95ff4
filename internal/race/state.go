package race

// Status identifies a phase of the race lifecycle.
type Status string

const (
	// StatusWaiting is the initial status: the host is waiting for an opponent.
	StatusWaiting Status = "waiting"

	// StatusCountdown means both participants are present and the pre-race
	// countdown is running.
	StatusCountdown Status = "countdown"

	// StatusActive means the race is underway and progress updates are legal.
	StatusActive Status = "active"

	// StatusCompleted is terminal; WinnerID is set on entry.
	StatusCompleted Status = "completed"

	// StatusCancelled is terminal; reachable from any non-terminal status.
	StatusCancelled Status = "cancelled"
)

// transitions is the complete forward-only transition table.
// Terminal statuses have no outgoing edges.
var transitions = map[Status][]Status{
	StatusWaiting:   {StatusCountdown, StatusCancelled},
	StatusCountdown: {StatusActive, StatusCancelled},
	StatusActive:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ValidTransition reports whether the status graph permits moving from one
// status to another. Unknown statuses are never valid on either side.
func ValidTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions.
func Terminal(s Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Bounds enforced on every accepted progress update.
const (
	MaxProgress = 100.0
	MaxWPM      = 500.0
	MaxAccuracy = 100.0
)

// Participant is one side of a race. Zero progress and a perfect accuracy
// are the starting convention: an untested participant is assumed accurate
// until a keystroke proves otherwise.
//
// Participant is a value type. It is mutated only by UpdateProgress, which
// returns a copy.
type Participant struct {
	ID       string
	IsBot    bool
	BotLevel string

	Progress float64
	WPM      float64
	Accuracy float64

	// FinishedAtMs is the epoch-ms instant progress first reached 100.
	// Zero means not finished. Once set it is never overwritten.
	FinishedAtMs int64
}

// Finished reports whether the participant has crossed the finish line.
func (p Participant) Finished() bool {
	return p.Progress >= MaxProgress && p.FinishedAtMs > 0
}

// newParticipant returns the zeroed starting participant.
func newParticipant(id string, isBot bool, botLevel string) Participant {
	return Participant{
		ID:       id,
		IsBot:    isBot,
		BotLevel: botLevel,
		Accuracy: MaxAccuracy,
	}
}

// Snapshot is the immutable state of a race at one version.
//
// Identity fields (ID, RoomCode, HostID, ExpectedText, CreatedAtMs) never
// change after New. Version increases by exactly one on every accepted
// transition; the persistence layer uses it as the compare-and-swap guard.
// All timestamps are epoch milliseconds; zero means unset.
type Snapshot struct {
	ID           string
	RoomCode     string
	Status       Status
	ExpectedText string

	HostID   string
	Host     Participant
	Opponent *Participant

	CountdownStartedAtMs int64
	StartedAtMs          int64
	EndedAtMs            int64
	WinnerID             string
	CancelReason         string

	Version     int64
	CreatedAtMs int64
	UpdatedAtMs int64
}

// HasOpponent reports whether a second participant has joined.
func (s Snapshot) HasOpponent() bool {
	return s.Opponent != nil
}

// participant resolves an ID against the host and opponent slots.
func (s Snapshot) participant(id string) (Participant, bool) {
	if id == s.HostID {
		return s.Host, true
	}
	if s.Opponent != nil && s.Opponent.ID == id {
		return *s.Opponent, true
	}
	return Participant{}, false
}

// clone returns a deep copy. The opponent pointer is the only indirection;
// everything else is value-copied.
func (s Snapshot) clone() Snapshot {
	out := s
	if s.Opponent != nil {
		opp := *s.Opponent
		out.Opponent = &opp
	}
	return out
}

// bump stamps a mutation: version +1 and a fresh UpdatedAtMs.
func (s *Snapshot) bump(nowMs int64) {
	s.Version++
	s.UpdatedAtMs = nowMs
}

// clamp limits v to [0, hi]. NaN collapses to 0 so that a hostile client
// cannot poison a snapshot with a non-finite value.
func clamp(v, hi float64) float64 {
	if !(v > 0) { // catches NaN as well as negatives
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
