// Package arena coordinates races end to end: it owns the
// read-transition-save-publish cycle around the pure state machine,
// retries optimistic-concurrency conflicts, drives synthetic opponents,
// and recomputes canonical metrics when a race completes.
//
// The arena is the only writer of race rows. Every command follows the
// same discipline: load the current snapshot, apply a pure transition,
// persist with a compare-and-swap on the version, then broadcast the
// accepted snapshot to subscribers. A lost CAS means another command
// landed first; the command is re-derived from the fresh snapshot rather
// than blindly replayed.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/velotype/velotype/internal/bot"
	"github.com/velotype/velotype/internal/hub"
	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/race"
	"github.com/velotype/velotype/internal/store"
	"github.com/velotype/velotype/internal/tiers"
)

const defaultMaxRetries = 5

var (
	// ErrUnknownTier means the requested bot level is not in the catalog.
	ErrUnknownTier = errors.New("unknown bot tier")

	// ErrTooManyConflicts means a command lost the version CAS on every
	// attempt. The race is under heavy contention; the caller may retry.
	ErrTooManyConflicts = errors.New("too many version conflicts")
)

// Arena wires the state machine to storage and fan-out.
type Arena struct {
	store *store.Store
	hub   *hub.Hub

	ids        IDGenerator
	clock      Clock
	catalog    map[string]tiers.Tier
	maxRetries int
	botSpeedup int64

	// rng seeds per-bot generators; guarded because bots run on their
	// own goroutines.
	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Arena.
type Option func(*Arena)

// WithClock replaces the wall clock, making every transition timestamp
// deterministic.
func WithClock(c Clock) Option {
	return func(a *Arena) { a.clock = c }
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(a *Arena) { a.ids = g }
}

// WithSeed makes bot behavior reproducible across runs.
func WithSeed(seed int64) Option {
	return func(a *Arena) { a.rng = rand.New(rand.NewSource(seed)) }
}

// WithMaxRetries bounds the CAS retry loop.
func WithMaxRetries(n int) Option {
	return func(a *Arena) { a.maxRetries = n }
}

// WithTierCatalog replaces the embedded bot tier catalog.
func WithTierCatalog(catalog map[string]tiers.Tier) Option {
	return func(a *Arena) { a.catalog = catalog }
}

// New creates an arena over a store and hub. Defaults: system clock,
// UUIDv7 IDs, the embedded tier catalog, time-seeded bot randomness.
func New(st *store.Store, h *hub.Hub, opts ...Option) *Arena {
	a := &Arena{
		store:      st,
		hub:        h,
		ids:        UUIDv7Generator{},
		clock:      SystemClock{},
		catalog:    tiers.MustLoad(),
		maxRetries: defaultMaxRetries,
		botSpeedup: 1,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tiers exposes the bot tier catalog.
func (a *Arena) Tiers() map[string]tiers.Tier {
	return a.catalog
}

// Store exposes the underlying store for read paths.
func (a *Arena) Store() *store.Store {
	return a.store
}

// botRand derives an independent generator for one bot.
func (a *Arena) botRand() *rand.Rand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return rand.New(rand.NewSource(a.rng.Int63()))
}

// mutate runs one command through the read-transition-CAS-publish cycle.
// fn must be pure: it is re-invoked on a fresh snapshot after every lost
// CAS. A changed=false return from fn short-circuits without a write.
func (a *Arena) mutate(ctx context.Context, raceID string, fn func(race.Snapshot) (race.Snapshot, bool, error)) (race.Snapshot, bool, error) {
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		snap, err := a.store.GetRace(ctx, raceID)
		if err != nil {
			return race.Snapshot{}, false, err
		}
		next, changed, err := fn(snap)
		if err != nil {
			return race.Snapshot{}, false, err
		}
		if !changed {
			return snap, false, nil
		}
		if err := a.store.SaveRace(ctx, next); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				slog.Debug("optimistic save lost, retrying",
					"race_id", raceID,
					"version", next.Version,
					"attempt", attempt)
				continue
			}
			return race.Snapshot{}, false, err
		}
		a.hub.Publish(next)
		return next, true, nil
	}
	return race.Snapshot{}, false, fmt.Errorf("race %s: %w (%d attempts)", raceID, ErrTooManyConflicts, a.maxRetries)
}

// CreateRace opens a new race in the waiting status. The room code is
// derived from the race ID so both are stable under a fixed generator.
func (a *Arena) CreateRace(ctx context.Context, hostID, expectedText string) (race.Snapshot, error) {
	id := a.ids.Generate()
	snap := race.New(id, roomCodeFrom(id), hostID, expectedText, a.clock.NowMs())
	if err := a.store.CreateRace(ctx, snap); err != nil {
		return race.Snapshot{}, err
	}
	slog.Info("race created",
		"race_id", snap.ID,
		"room_code", snap.RoomCode,
		"host_id", hostID,
		"text_len", len(expectedText))
	a.hub.Publish(snap)
	return snap, nil
}

// Join seats a human opponent.
func (a *Arena) Join(ctx context.Context, raceID, userID string) (race.Snapshot, error) {
	snap, _, err := a.mutate(ctx, raceID, func(s race.Snapshot) (race.Snapshot, bool, error) {
		next, err := race.AddOpponent(s, userID, false, "", a.clock.NowMs())
		if err != nil {
			return race.Snapshot{}, false, err
		}
		return next, true, nil
	})
	if err != nil {
		return race.Snapshot{}, err
	}
	slog.Info("opponent joined", "race_id", raceID, "user_id", userID)
	return snap, nil
}

// AddBot seats a synthetic opponent of the given tier and returns its
// session ID for the caller to pass to RunBot.
func (a *Arena) AddBot(ctx context.Context, raceID, level string) (race.Snapshot, string, error) {
	tier, ok := a.catalog[level]
	if !ok {
		return race.Snapshot{}, "", fmt.Errorf("bot level %q: %w", level, ErrUnknownTier)
	}
	botID := "bot-" + a.ids.Generate()
	snap, _, err := a.mutate(ctx, raceID, func(s race.Snapshot) (race.Snapshot, bool, error) {
		next, err := race.AddOpponent(s, botID, true, level, a.clock.NowMs())
		if err != nil {
			return race.Snapshot{}, false, err
		}
		return next, true, nil
	})
	if err != nil {
		return race.Snapshot{}, "", err
	}
	slog.Info("bot joined",
		"race_id", raceID,
		"bot_id", botID,
		"tier", tier.Name)
	return snap, botID, nil
}

// StartCountdown begins the pre-race countdown. Already counting down is
// a safe no-op.
func (a *Arena) StartCountdown(ctx context.Context, raceID string) (race.Snapshot, bool, error) {
	return a.mutate(ctx, raceID, func(s race.Snapshot) (race.Snapshot, bool, error) {
		return race.StartCountdown(s, a.clock.NowMs())
	})
}

// StartRace opens the race for progress updates. Already active is a
// safe no-op.
func (a *Arena) StartRace(ctx context.Context, raceID string) (race.Snapshot, bool, error) {
	return a.mutate(ctx, raceID, func(s race.Snapshot) (race.Snapshot, bool, error) {
		return race.StartRace(s, a.clock.NowMs())
	})
}

// UpdateProgress records one participant's live figures.
func (a *Arena) UpdateProgress(ctx context.Context, raceID, participantID string, progress, wpm, accuracy float64) (race.Snapshot, error) {
	snap, _, err := a.mutate(ctx, raceID, func(s race.Snapshot) (race.Snapshot, bool, error) {
		next, err := race.UpdateProgress(s, participantID, progress, wpm, accuracy, a.clock.NowMs())
		if err != nil {
			return race.Snapshot{}, false, err
		}
		return next, true, nil
	})
	return snap, err
}

// Complete finishes the race and settles the winner. Already completed
// is a safe no-op.
func (a *Arena) Complete(ctx context.Context, raceID string) (race.Snapshot, bool, error) {
	snap, changed, err := a.mutate(ctx, raceID, func(s race.Snapshot) (race.Snapshot, bool, error) {
		return race.Complete(s, a.clock.NowMs())
	})
	if err == nil && changed {
		slog.Info("race completed",
			"race_id", raceID,
			"winner_id", snap.WinnerID,
			"duration_ms", snap.EndedAtMs-snap.StartedAtMs)
	}
	return snap, changed, err
}

// Cancel aborts the race. Already cancelled is a safe no-op.
func (a *Arena) Cancel(ctx context.Context, raceID, reason string) (race.Snapshot, bool, error) {
	snap, changed, err := a.mutate(ctx, raceID, func(s race.Snapshot) (race.Snapshot, bool, error) {
		return race.Cancel(s, reason, a.clock.NowMs())
	})
	if err == nil && changed {
		slog.Info("race cancelled", "race_id", raceID, "reason", reason)
	}
	return snap, changed, err
}

// RecordKeystrokes appends a session's keystroke batch to the canonical
// log. The log, not the client's arithmetic, is the source of truth for
// final metrics.
func (a *Arena) RecordKeystrokes(ctx context.Context, records []metrics.Keystroke) error {
	return a.store.AppendKeystrokes(ctx, records)
}

// FinalizeResult recomputes one participant's metrics from the stored
// keystroke log, verifies any client-submitted figures against them, and
// persists the canonical result. Divergence never blocks persistence: it
// is recorded as integrity flags on the result and logged.
func (a *Arena) FinalizeResult(ctx context.Context, raceID, participantID, sessionID string, client metrics.ClientMetrics) (store.Result, error) {
	snap, err := a.store.GetRace(ctx, raceID)
	if err != nil {
		return store.Result{}, err
	}
	keystrokes, err := a.store.Keystrokes(ctx, sessionID)
	if err != nil {
		return store.Result{}, err
	}

	verdict := metrics.Verify(client, keystrokes, snap.ExpectedText)
	if !verdict.Valid {
		slog.Warn("client metrics diverge from canonical recomputation",
			"race_id", raceID,
			"participant_id", participantID,
			"session_id", sessionID,
			"errors", verdict.Errors)
	}

	result := store.Result{
		RaceID:        raceID,
		ParticipantID: participantID,
		Metrics:       verdict.Computed,
		Flagged:       !verdict.Valid,
		Flags:         verdict.Errors,
		CreatedAtMs:   a.clock.NowMs(),
	}
	if err := a.store.SaveResult(ctx, result); err != nil {
		return store.Result{}, err
	}
	slog.Info("result recorded",
		"race_id", raceID,
		"participant_id", participantID,
		"wpm", result.Metrics.NetWPM,
		"accuracy", result.Metrics.Accuracy,
		"flagged", result.Flagged)
	return result, nil
}

// Bot keystroke batches are flushed alongside progress updates rather
// than per key; this keeps write amplification at the update cadence.
func (a *Arena) flushBot(ctx context.Context, b *bot.Bot, flushed int) (int, error) {
	if flushed >= len(b.Keystrokes) {
		return flushed, nil
	}
	if err := a.store.AppendKeystrokes(ctx, b.Keystrokes[flushed:]); err != nil {
		return flushed, err
	}
	return len(b.Keystrokes), nil
}
