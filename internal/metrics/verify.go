package metrics

import (
	"fmt"
	"math"
)

// Verification tolerances. A WPM mismatch is flagged only when it exceeds
// both the relative tolerance and the absolute floor, so that low-speed
// sessions are not flooded with rounding noise.
const (
	wpmRelativeTolerance = 0.005
	wpmAbsoluteFloor     = 2.0
	accuracyTolerance    = 0.5
)

// ClientMetrics carries the figures a client reported about its own
// session. Fields are pointers because a client may report any subset;
// nil fields are simply not checked.
type ClientMetrics struct {
	RawWPM   *float64 `json:"raw_wpm,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// VerificationResult is the outcome of comparing client figures against
// the canonical recomputation. Errors are descriptive integrity signals,
// not exceptions: the caller persists Computed regardless and uses Errors
// only for fraud logging.
type VerificationResult struct {
	Valid    bool           `json:"valid"`
	Errors   []string       `json:"errors"`
	Computed SessionMetrics `json:"computed_metrics"`
}

// Verify recomputes canonical metrics from the keystroke log and flags
// client-reported values that diverge beyond tolerance. The canonical
// recomputation is always authoritative; a client's numbers can only ever
// mark the session as suspect.
func Verify(client ClientMetrics, keystrokes []Keystroke, targetText string) VerificationResult {
	typed := ReconstructTypedText(keystrokes)
	computed := ComputeSession(keystrokes, targetText, typed)

	res := VerificationResult{Computed: computed}

	if !computed.IsValid {
		res.Errors = append(res.Errors, computed.ValidationErrors...)
	}

	if client.RawWPM != nil {
		diff := math.Abs(*client.RawWPM - computed.RawWPM)
		rel := wpmRelativeTolerance * math.Abs(computed.RawWPM)
		if diff > wpmAbsoluteFloor && diff > rel {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"raw wpm mismatch: client reported %.2f, computed %.2f", *client.RawWPM, computed.RawWPM))
		}
	}
	if client.Accuracy != nil {
		if math.Abs(*client.Accuracy-computed.Accuracy) > accuracyTolerance {
			res.Errors = append(res.Errors, fmt.Sprintf(
				"accuracy mismatch: client reported %.2f, computed %.2f", *client.Accuracy, computed.Accuracy))
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}
