package bot

import (
	"math/rand"

	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/tiers"
)

// Jitter applied per bot instance so two bots of the same tier are not
// identical twins.
const (
	mistakeJitterMax   = 0.05
	mistakeProbMin     = 0.01
	mistakeProbMax     = 0.25
	correctionRetypeMs = 120.0
)

// Bot is the live state of one synthetic typist working through a target
// text. It is a metrics-compatible keystroke producer: the log it
// accumulates passes the same canonical verification a human session does.
type Bot struct {
	SessionID string
	Tier      tiers.Tier

	target []rune
	rng    *rand.Rand

	// Typed is the live buffer, cursor included; mirrors what
	// metrics.ReconstructTypedText would rebuild from the log.
	Typed      []rune
	Cursor     int
	Keystrokes []metrics.Keystroke

	CorrectChars int
	TypedChars   int

	StartedAtMs int64
	LastKeyMs   int64
	CurrentWPM  float64
	Progress    float64
	Finished    bool
}

// New creates a bot for a tier and target text. The tier is copied and
// perturbed: target WPM by a normal draw with half the tier's stddev, and
// mistake probability by up to ±0.05, clamped to [0.01, 0.25].
func New(tier tiers.Tier, sessionID, targetText string, rng *rand.Rand) *Bot {
	t := tier
	t.TargetWPMMean += rng.NormFloat64() * t.TargetWPMStdDev / 2
	if t.TargetWPMMean < 1 {
		t.TargetWPMMean = 1
	}
	// Pace follows the jittered target: a bot drawn 10% fast types with
	// 10% shorter intervals, keeping the tier's rhythm texture.
	scale := tier.TargetWPMMean / t.TargetWPMMean
	t.IKIMeanMs *= scale
	t.IKIStdDevMs *= scale
	t.MistakeProbability += (rng.Float64()*2 - 1) * mistakeJitterMax
	if t.MistakeProbability < mistakeProbMin {
		t.MistakeProbability = mistakeProbMin
	}
	if t.MistakeProbability > mistakeProbMax {
		t.MistakeProbability = mistakeProbMax
	}
	return &Bot{
		SessionID: sessionID,
		Tier:      t,
		target:    []rune(targetText),
		rng:       rng,
	}
}

// TargetLen returns the length of the target text in runes.
func (b *Bot) TargetLen() int { return len(b.target) }

// LiveAccuracy is the bot's UI-facing accuracy over characters typed so
// far. This is the live approximation, not the canonical anti-cheat
// accuracy; verification always recomputes from the keystroke log.
func (b *Bot) LiveAccuracy() float64 {
	if b.TypedChars == 0 {
		return 100
	}
	return 100 * float64(b.CorrectChars) / float64(b.TypedChars)
}

// press records one key press and keeps the live buffer in sync.
func (b *Bot) press(expected, typed rune, tsMs int64, correct bool) {
	b.Keystrokes = append(b.Keystrokes, metrics.Keystroke{
		SessionID:    b.SessionID,
		CharExpected: string(expected),
		CharTyped:    string(typed),
		EventType:    metrics.EventKeyDown,
		TimestampMs:  tsMs,
		CursorIndex:  len(b.Typed),
		IsCorrect:    correct,
	})
	b.Typed = append(b.Typed, typed)
	b.TypedChars++
	if correct {
		b.CorrectChars++
	}
}

// backspace records a correction press and pops the live buffer.
func (b *Bot) backspace(tsMs int64) {
	b.Keystrokes = append(b.Keystrokes, metrics.Keystroke{
		SessionID:   b.SessionID,
		EventType:   metrics.EventKeyDown,
		TimestampMs: tsMs,
		CursorIndex: len(b.Typed),
		IsBackspace: true,
	})
	if len(b.Typed) > 0 {
		b.Typed = b.Typed[:len(b.Typed)-1]
	}
}

// SimulateKeystroke advances the bot by one intended character at the
// given time and returns the timestamp of the last keystroke it emitted.
//
// With the tier's mistake probability the bot substitutes a QWERTY
// neighbor for the intended character. A mistake is usually noticed: with
// the tier's correction probability the bot emits a backspace after a
// sampled correction delay and retypes the right character after a short
// further pause, exactly the three-record trail a self-correcting human
// leaves in the log. An unnoticed mistake just moves on.
//
// After the step the bot's live WPM, progress and finished flag are
// recomputed. Calling SimulateKeystroke on a finished bot is a no-op.
func (b *Bot) SimulateKeystroke(nowMs int64) int64 {
	if b.Finished || b.Cursor >= len(b.target) {
		return nowMs
	}
	if b.StartedAtMs == 0 {
		b.StartedAtMs = nowMs
	}

	expected := b.target[b.Cursor]
	last := nowMs

	if b.rng.Float64() < b.Tier.MistakeProbability {
		typo := typoFor(expected, b.rng)
		b.press(expected, typo, last, false)

		if b.rng.Float64() < b.Tier.CorrectionProbability {
			last += int64(sampleLogNormal(b.rng, b.Tier.CorrectionDelayMs, b.Tier.CorrectionDelayMs/3))
			b.backspace(last)
			last += int64(sampleLogNormal(b.rng, correctionRetypeMs, correctionRetypeMs/3))
			b.press(expected, expected, last, true)
		}
		// Either way the bot moves to the next character; an uncorrected
		// typo stays in the buffer like a human leaving the error behind.
		b.Cursor++
	} else {
		b.press(expected, expected, last, true)
		b.Cursor++
	}

	b.LastKeyMs = last
	b.CurrentWPM = metrics.WPM(b.CorrectChars, last-b.StartedAtMs)
	b.Progress = progress(b.Cursor, len(b.target))
	b.Finished = b.Cursor >= len(b.target)
	return last
}

// progress converts a cursor position into a 0-100 percentage.
func progress(cursor, targetLen int) float64 {
	if targetLen == 0 {
		return 100
	}
	p := 100 * float64(cursor) / float64(targetLen)
	if p > 100 {
		p = 100
	}
	return p
}

// Update is one periodic snapshot of a headless bot race.
type Update struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Progress    float64 `json:"progress"`
	WPM         float64 `json:"wpm"`
	TypedText   string  `json:"typed_text"`
}

// SimulateFullRace runs a bot from the first keystroke to the end of the
// text without an external clock, snapshotting the first keystroke at or
// past each cadence boundary. The
// returned series always ends with one final snapshot at progress 100.
// The bot is returned too so callers can persist or verify its keystroke
// log.
//
// Used for server-hosted bots precomputed offline; live bots are driven
// keystroke-by-keystroke on a timer instead.
func SimulateFullRace(tier tiers.Tier, sessionID, targetText string, updateIntervalMs int64, rng *rand.Rand) ([]Update, *Bot) {
	if updateIntervalMs <= 0 {
		updateIntervalMs = 200
	}
	b := New(tier, sessionID, targetText, rng)

	var updates []Update
	now := int64(0)
	nextSnap := updateIntervalMs
	for !b.Finished {
		now += b.NextKeystrokeDelay()
		now = b.SimulateKeystroke(now)
		// Snapshots carry the timestamp of the keystroke whose state they
		// report, so a snapshot never claims state from after its own
		// instant. The cadence bounds the gap between snapshots.
		if now >= nextSnap && !b.Finished {
			updates = append(updates, Update{
				TimestampMs: now,
				Progress:    b.Progress,
				WPM:         b.CurrentWPM,
				TypedText:   string(b.Typed),
			})
			for nextSnap <= now {
				nextSnap += updateIntervalMs
			}
		}
	}
	updates = append(updates, Update{
		TimestampMs: now,
		Progress:    100,
		WPM:         b.CurrentWPM,
		TypedText:   string(b.Typed),
	})
	return updates, b
}
