package metrics

import (
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// charsPerWord is the conventional word length for WPM calculations.
const charsPerWord = 5.0

// SessionMetrics is the canonical aggregate for one typing session.
// Instances are derived by ComputeSession and never hand-constructed
// elsewhere. Every numeric field is finite; violations flip IsValid.
type SessionMetrics struct {
	NetWPM      float64 `json:"net_wpm"`
	RawWPM      float64 `json:"raw_wpm"`
	Accuracy    float64 `json:"accuracy"`
	Consistency float64 `json:"consistency"`

	CorrectChars   int `json:"correct_chars"`
	IncorrectChars int `json:"incorrect_chars"`
	MissedChars    int `json:"missed_chars"`
	ExtraChars     int `json:"extra_chars"`
	BackspaceCount int `json:"backspace_count"`

	StartedAtMs int64 `json:"started_at_ms"`
	EndedAtMs   int64 `json:"ended_at_ms"`
	DurationMs  int64 `json:"duration_ms"`

	CharsPerSecond float64 `json:"chars_per_second"`
	PeakWPM        float64 `json:"peak_wpm"`
	LowestWPM      float64 `json:"lowest_wpm"`

	IsValid          bool     `json:"is_valid"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// WPM converts a correct-character count over an elapsed duration into
// rounded words per minute. Non-positive durations yield 0.
func WPM(correctChars int, elapsedMs int64) float64 {
	if elapsedMs <= 0 {
		return 0
	}
	minutes := float64(elapsedMs) / 60000.0
	return math.Round((float64(correctChars) / charsPerWord) / minutes)
}

// RawWPM is WPM over all typed characters, correct or not.
func RawWPM(totalTypedChars int, elapsedMs int64) float64 {
	return WPM(totalTypedChars, elapsedMs)
}

// Accuracy is the canonical anti-cheat accuracy: correct characters over
// everything the typist produced or owed (correct+incorrect+missed+extra),
// as a percentage rounded to two decimals. An empty denominator is a
// perfect 100.
//
// A session that used backspace can never display a flawless score: if the
// result would round to 100 it is clamped to 99.99.
func Accuracy(correct, incorrect, missed, extra int, backspaceUsed bool) float64 {
	den := correct + incorrect + missed + extra
	acc := 100.0
	if den > 0 {
		acc = 100.0 * float64(correct) / float64(den)
	}
	acc = math.Round(acc*100) / 100
	if backspaceUsed && acc >= 100 {
		return 99.99
	}
	return acc
}

// Consistency scores the evenness of a WPM sample series as 100 minus the
// coefficient of variation (stddev/mean) in percent, clamped to [0,100]
// and rounded to one decimal. Zero and non-finite samples are dropped;
// fewer than two usable samples score a trivial 100.
func Consistency(wpmSamples []float64) float64 {
	usable := make([]float64, 0, len(wpmSamples))
	for _, s := range wpmSamples {
		if s > 0 && !math.IsInf(s, 0) && !math.IsNaN(s) {
			usable = append(usable, s)
		}
	}
	if len(usable) < 2 {
		return 100
	}

	var sum float64
	for _, s := range usable {
		sum += s
	}
	mean := sum / float64(len(usable))

	var sq float64
	for _, s := range usable {
		d := s - mean
		sq += d * d
	}
	cv := math.Sqrt(sq/float64(len(usable))) / mean

	score := 100 - cv*100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return math.Round(score*10) / 10
}

// Normalize puts text into NFC form so that canonical comparison does not
// depend on how a client composed its characters.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// ComputeSession derives the canonical SessionMetrics for a keystroke log,
// the target text and the final typed text. Characters are classified by
// positional comparison over the shorter of the two texts; excess typed
// length counts as extra, shortfall as missed.
func ComputeSession(keystrokes []Keystroke, targetText, finalTypedText string) SessionMetrics {
	var m SessionMetrics

	if len(keystrokes) == 0 {
		m.Accuracy = 100
		m.Consistency = 100
		m.ValidationErrors = append(m.ValidationErrors, "no keystrokes")
		return m
	}

	target := []rune(Normalize(targetText))
	typed := []rune(Normalize(finalTypedText))

	n := len(typed)
	if len(target) < n {
		n = len(target)
	}
	for i := 0; i < n; i++ {
		if typed[i] == target[i] {
			m.CorrectChars++
		} else {
			m.IncorrectChars++
		}
	}
	if len(typed) > len(target) {
		m.ExtraChars = len(typed) - len(target)
	}
	if len(target) > len(typed) {
		m.MissedChars = len(target) - len(typed)
	}

	totalTyped := 0
	for _, k := range keystrokes {
		if k.IsBackspace && k.EventType == EventKeyDown {
			m.BackspaceCount++
		}
		if k.counted() {
			totalTyped++
		}
	}

	m.StartedAtMs = keystrokes[0].TimestampMs
	m.EndedAtMs = keystrokes[len(keystrokes)-1].TimestampMs
	m.DurationMs = m.EndedAtMs - m.StartedAtMs

	m.NetWPM = WPM(m.CorrectChars, m.DurationMs)
	m.RawWPM = RawWPM(totalTyped, m.DurationMs)
	m.Accuracy = Accuracy(m.CorrectChars, m.IncorrectChars, m.MissedChars, m.ExtraChars, m.BackspaceCount > 0)

	if m.DurationMs > 0 {
		m.CharsPerSecond = float64(totalTyped) / (float64(m.DurationMs) / 1000.0)
	}

	samples := WPMWindows(keystrokes, DefaultWindowMs, DefaultStepMs)
	m.Consistency = Consistency(samples)
	for _, s := range samples {
		if s > m.PeakWPM {
			m.PeakWPM = s
		}
		if s > 0 && (m.LowestWPM == 0 || s < m.LowestWPM) {
			m.LowestWPM = s
		}
	}

	m.IsValid = true
	m.ValidationErrors = validate(&m)
	if len(m.ValidationErrors) > 0 {
		m.IsValid = false
	}
	return m
}

// validate itemizes non-finite derived values. The metrics themselves are
// still returned; invalidity is data, not an exception.
func validate(m *SessionMetrics) []string {
	var errs []string
	check := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Sprintf("%s is not finite", name))
		}
	}
	check("net_wpm", m.NetWPM)
	check("raw_wpm", m.RawWPM)
	check("accuracy", m.Accuracy)
	check("consistency", m.Consistency)
	check("chars_per_second", m.CharsPerSecond)
	check("peak_wpm", m.PeakWPM)
	check("lowest_wpm", m.LowestWPM)
	return errs
}
