package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/velotype/velotype/internal/bot"
	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/race"
)

// botUpdateIntervalMs is the cadence at which a running bot publishes
// progress and flushes its keystroke batch.
const botUpdateIntervalMs = 200

// WithBotSpeedup divides every real-time bot pause by the given factor.
// Keystroke timestamps are unaffected: the bot's log still reads as if it
// typed at human pace. A factor of 1000 turns a thirty-second race into
// a few wall-clock milliseconds, which is what the simulator and tests
// want.
func WithBotSpeedup(factor int64) Option {
	return func(a *Arena) {
		if factor > 0 {
			a.botSpeedup = factor
		}
	}
}

// RunBot types a race on behalf of a seated bot and blocks until the bot
// finishes, the race leaves the active status, or the context is
// cancelled. The race must already be active; sessionID must be the ID
// returned by AddBot.
//
// Each iteration samples the next inter-key interval, waits it out,
// emits the keystroke, and at the update cadence flushes the keystroke
// batch and posts a progress update. When the bot crosses the finish
// line it posts a final progress of 100, attempts to complete the race,
// and records its own canonical result. The bot submits no client
// metrics: its log alone produces the persisted figures, the same path a
// verified human session takes.
func (a *Arena) RunBot(ctx context.Context, raceID, sessionID, level string) error {
	tier, ok := a.catalog[level]
	if !ok {
		return fmt.Errorf("bot level %q: %w", level, ErrUnknownTier)
	}
	snap, err := a.store.GetRace(ctx, raceID)
	if err != nil {
		return err
	}
	if snap.Status != race.StatusActive {
		return fmt.Errorf("race %s: bot cannot type in status %q", raceID, snap.Status)
	}

	b := bot.New(tier, sessionID, snap.ExpectedText, a.botRand())
	slog.Debug("bot running",
		"race_id", raceID,
		"session_id", sessionID,
		"tier", tier.Name,
		"eta_ms", bot.ExpectedCompletionTimeMs(tier, b.TargetLen()))

	now := a.clock.NowMs()
	lastPost := now
	flushed := 0

	for !b.Finished {
		delay := b.NextKeystrokeDelay()
		if err := a.pause(ctx, delay); err != nil {
			return err
		}
		now += delay
		// A corrected typo emits backspace and retype records past the
		// press instant; the clock follows the last record.
		now = b.SimulateKeystroke(now)

		if !b.Finished && now-lastPost < botUpdateIntervalMs {
			continue
		}
		lastPost = now

		flushed, err = a.flushBot(ctx, b, flushed)
		if err != nil {
			return err
		}
		if _, err := a.UpdateProgress(ctx, raceID, sessionID, b.Progress, b.CurrentWPM, b.LiveAccuracy()); err != nil {
			// The race may have been cancelled or completed under the
			// bot; stop typing instead of erroring the runner. A race
			// completed by the other participant still gets this bot's
			// partial result.
			var stateErr *race.StateError
			if errors.As(err, &stateErr) {
				slog.Debug("bot stopping, race no longer accepts progress",
					"race_id", raceID,
					"session_id", sessionID,
					"status", stateErr.Status)
				if stateErr.Status == race.StatusCompleted {
					_, err = a.FinalizeResult(ctx, raceID, sessionID, sessionID, metrics.ClientMetrics{})
					return err
				}
				return nil
			}
			return err
		}
	}

	if _, _, err := a.Complete(ctx, raceID); err != nil {
		var stateErr *race.StateError
		if !errors.As(err, &stateErr) {
			return err
		}
	}
	_, err = a.FinalizeResult(ctx, raceID, sessionID, sessionID, metrics.ClientMetrics{})
	return err
}

// pause waits out one inter-key interval, compressed by the speedup
// factor, honoring cancellation.
func (a *Arena) pause(ctx context.Context, delayMs int64) error {
	speedup := a.botSpeedup
	if speedup <= 0 {
		speedup = 1
	}
	wait := time.Duration(delayMs) * time.Millisecond / time.Duration(speedup)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
