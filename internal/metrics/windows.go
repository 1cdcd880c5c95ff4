package metrics

// Defaults for the sliding WPM window used by consistency scoring.
const (
	DefaultWindowMs int64 = 5000
	DefaultStepMs   int64 = 1000
)

// WPMWindows slides a fixed-size window across the keystroke timeline in
// stepMs increments and converts the correct non-backspace presses inside
// each window into a WPM sample. The samples feed Consistency and the
// peak/lowest figures of ComputeSession.
//
// Windows are anchored at the first keystroke's timestamp. A log shorter
// than one step still yields a single window so very short sessions are
// not silently consistency-perfect.
func WPMWindows(keystrokes []Keystroke, windowMs, stepMs int64) []float64 {
	if len(keystrokes) == 0 || windowMs <= 0 || stepMs <= 0 {
		return nil
	}

	start := keystrokes[0].TimestampMs
	end := keystrokes[len(keystrokes)-1].TimestampMs

	var samples []float64
	for winStart := start; ; winStart += stepMs {
		winEnd := winStart + windowMs
		count := 0
		for _, k := range keystrokes {
			if k.TimestampMs < winStart || k.TimestampMs >= winEnd {
				continue
			}
			if k.counted() && k.IsCorrect {
				count++
			}
		}
		samples = append(samples, WPM(count, windowMs))
		if winEnd > end {
			break
		}
	}
	return samples
}
