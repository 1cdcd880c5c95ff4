package arena

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velotype/velotype/internal/hub"
	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/race"
	"github.com/velotype/velotype/internal/store"
	"github.com/velotype/velotype/internal/testutil"
)

const t0 = int64(1_700_000_000_000)

const testText = "the quick brown fox jumps over the lazy dog"

func newTestArena(t *testing.T, opts ...Option) (*Arena, *store.Store, *hub.Hub, *testutil.ManualClock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := hub.New()
	clock := testutil.NewManualClock(t0)
	base := []Option{
		WithClock(clock),
		WithIDGenerator(testutil.NewSeqIDGenerator("race")),
		WithSeed(42),
		WithBotSpeedup(10_000),
	}
	a := New(st, h, append(base, opts...)...)
	return a, st, h, clock
}

func TestCreateRace_PersistsAndDerivesRoomCode(t *testing.T) {
	a, st, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)

	assert.Equal(t, "race-1", snap.ID)
	assert.Equal(t, "RACE1", snap.RoomCode)
	assert.Equal(t, race.StatusWaiting, snap.Status)
	assert.Equal(t, t0, snap.CreatedAtMs)

	stored, err := st.GetRace(ctx, "race-1")
	require.NoError(t, err)
	assert.Equal(t, snap, stored)

	byCode, err := st.GetRaceByRoomCode(ctx, "RACE1")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, byCode.ID)
}

func TestLifecycle_CreateJoinCountdownStartUpdateComplete(t *testing.T) {
	a, _, h, clock := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)

	updates, cancel := h.Subscribe(snap.ID)
	defer cancel()

	snap, err = a.Join(ctx, snap.ID, "user-2")
	require.NoError(t, err)
	require.NotNil(t, snap.Opponent)
	assert.Equal(t, "user-2", snap.Opponent.ID)
	assert.Equal(t, int64(1), snap.Version)

	clock.Advance(1000)
	snap, changed, err := a.StartCountdown(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, race.StatusCountdown, snap.Status)
	assert.Equal(t, t0+1000, snap.CountdownStartedAtMs)

	clock.Advance(3000)
	snap, changed, err = a.StartRace(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, race.StatusActive, snap.Status)

	clock.Advance(10_000)
	snap, err = a.UpdateProgress(ctx, snap.ID, "host-1", 100, 72.5, 98.2)
	require.NoError(t, err)
	assert.True(t, snap.Host.Finished())

	snap, err = a.UpdateProgress(ctx, snap.ID, "user-2", 80, 55.0, 96.0)
	require.NoError(t, err)

	snap, changed, err = a.Complete(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, race.StatusCompleted, snap.Status)
	assert.Equal(t, "host-1", snap.WinnerID)

	// Every accepted mutation after the subscription was broadcast in order.
	var seen []race.Snapshot
	for len(updates) > 0 {
		seen = append(seen, <-updates)
	}
	require.Len(t, seen, 6)
	for i := 1; i < len(seen); i++ {
		assert.Equal(t, seen[i-1].Version+1, seen[i].Version)
	}
	assert.Equal(t, race.StatusCompleted, seen[len(seen)-1].Status)
}

func TestStartCountdown_IdempotentNoOpSkipsWriteAndPublish(t *testing.T) {
	a, _, h, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)
	_, err = a.Join(ctx, snap.ID, "user-2")
	require.NoError(t, err)

	first, changed, err := a.StartCountdown(ctx, snap.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	updates, cancel := h.Subscribe(snap.ID)
	defer cancel()

	second, changed, err := a.StartCountdown(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first.Version, second.Version)
	assert.Empty(t, updates)
}

func TestJoin_SecondOpponentRejected(t *testing.T) {
	a, _, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)
	_, err = a.Join(ctx, snap.ID, "user-2")
	require.NoError(t, err)

	_, err = a.Join(ctx, snap.ID, "user-3")
	require.Error(t, err)
	assert.True(t, race.IsParticipantConflict(err))
}

func TestAddBot_UnknownTier(t *testing.T) {
	a, _, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)

	_, _, err = a.AddBot(ctx, snap.ID, "grandmaster")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestCancel_FromWaiting(t *testing.T) {
	a, _, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)

	snap, changed, err := a.Cancel(ctx, snap.ID, "host left")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, race.StatusCancelled, snap.Status)
	assert.Equal(t, "host left", snap.CancelReason)

	_, changed, err = a.Cancel(ctx, snap.ID, "again")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUpdateProgress_ConcurrentWritersAllLand(t *testing.T) {
	a, _, _, _ := newTestArena(t, WithMaxRetries(100))
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)
	_, err = a.Join(ctx, snap.ID, "user-2")
	require.NoError(t, err)
	_, _, err = a.StartCountdown(ctx, snap.ID)
	require.NoError(t, err)
	active, _, err := a.StartRace(ctx, snap.ID)
	require.NoError(t, err)

	const perWriter = 10
	var wg sync.WaitGroup
	for _, id := range []string{"host-1", "user-2"} {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			for i := 1; i <= perWriter; i++ {
				_, err := a.UpdateProgress(ctx, snap.ID, pid, float64(i), float64(40+i), 97.0)
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	final, err := a.store.GetRace(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, active.Version+2*perWriter, final.Version)
	assert.Equal(t, float64(perWriter), final.Host.Progress)
	assert.Equal(t, float64(perWriter), final.Opponent.Progress)
}

func TestRunBot_FinishesRaceAndRecordsVerifiedResult(t *testing.T) {
	a, st, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)
	snap, botID, err := a.AddBot(ctx, snap.ID, "pro")
	require.NoError(t, err)
	require.NotNil(t, snap.Opponent)
	assert.True(t, snap.Opponent.IsBot)
	assert.Equal(t, "pro", snap.Opponent.BotLevel)

	_, _, err = a.StartCountdown(ctx, snap.ID)
	require.NoError(t, err)
	_, _, err = a.StartRace(ctx, snap.ID)
	require.NoError(t, err)

	require.NoError(t, a.RunBot(ctx, snap.ID, botID, "pro"))

	final, err := st.GetRace(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, race.StatusCompleted, final.Status)
	assert.Equal(t, botID, final.WinnerID)
	assert.Equal(t, 100.0, final.Opponent.Progress)
	assert.True(t, final.Opponent.Finished())

	// The keystroke log replays to the exact target text: the bot corrects
	// or abandons typos the same way the verifier expects.
	keystrokes, err := st.Keystrokes(ctx, botID)
	require.NoError(t, err)
	require.NotEmpty(t, keystrokes)

	result, err := st.GetResult(ctx, snap.ID, botID)
	require.NoError(t, err)
	assert.False(t, result.Flagged)
	assert.True(t, result.Metrics.IsValid)
	assert.Greater(t, result.Metrics.NetWPM, 0.0)
	assert.LessOrEqual(t, result.Metrics.Accuracy, 100.0)
}

func TestRunBot_RequiresActiveRace(t *testing.T) {
	a, _, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)
	_, botID, err := a.AddBot(ctx, snap.ID, "beginner")
	require.NoError(t, err)

	err = a.RunBot(ctx, snap.ID, botID, "beginner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}

func TestFinalizeResult_FlagsInflatedClientFigures(t *testing.T) {
	a, st, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", "abc")
	require.NoError(t, err)

	records := make([]metrics.Keystroke, 0, 3)
	for i, r := range "abc" {
		records = append(records, metrics.Keystroke{
			SessionID:    "sess-host",
			CharExpected: string(r),
			CharTyped:    string(r),
			EventType:    metrics.EventKeyDown,
			TimestampMs:  t0 + int64(i)*200,
			CursorIndex:  i,
			IsCorrect:    true,
		})
	}
	require.NoError(t, a.RecordKeystrokes(ctx, records))

	inflated := 400.0
	result, err := a.FinalizeResult(ctx, snap.ID, "host-1", "sess-host", metrics.ClientMetrics{RawWPM: &inflated})
	require.NoError(t, err)
	assert.True(t, result.Flagged)
	require.NotEmpty(t, result.Flags)
	assert.Contains(t, result.Flags[0], "raw wpm mismatch")

	// The canonical recomputation, not the client claim, is persisted.
	stored, err := st.GetResult(ctx, snap.ID, "host-1")
	require.NoError(t, err)
	assert.Less(t, stored.Metrics.RawWPM, inflated)
	assert.Equal(t, 100.0, stored.Metrics.Accuracy)
}

func TestFinalizeResult_HonestClientNotFlagged(t *testing.T) {
	a, _, _, _ := newTestArena(t)
	ctx := context.Background()

	snap, err := a.CreateRace(ctx, "host-1", "abc")
	require.NoError(t, err)

	records := make([]metrics.Keystroke, 0, 3)
	for i, r := range "abc" {
		records = append(records, metrics.Keystroke{
			SessionID:    "sess-honest",
			CharExpected: string(r),
			CharTyped:    string(r),
			EventType:    metrics.EventKeyDown,
			TimestampMs:  t0 + int64(i)*200,
			CursorIndex:  i,
			IsCorrect:    true,
		})
	}
	require.NoError(t, a.RecordKeystrokes(ctx, records))

	honest := 100.0
	result, err := a.FinalizeResult(ctx, snap.ID, "host-1", "sess-honest", metrics.ClientMetrics{Accuracy: &honest})
	require.NoError(t, err)
	assert.False(t, result.Flagged)
	assert.Empty(t, result.Flags)
}

func TestFixedGenerator_PanicsWhenExhausted(t *testing.T) {
	gen := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestRoomCodeFrom(t *testing.T) {
	assert.Equal(t, "747000", roomCodeFrom("0192-ab74-7000"))
	assert.Equal(t, "AB1", roomCodeFrom("ab1"))

	// UUIDv7s minted in the same window share their leading characters;
	// the derived codes must still differ.
	a := roomCodeFrom("01929f6e-1111-7abc-8def-0123456789ab")
	b := roomCodeFrom("01929f6e-2222-7abc-8def-ba9876543210")
	assert.NotEqual(t, a, b)
}

func TestCreateRace_RealGeneratorDistinctRoomCodes(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, st.Close()) })

	// Default UUIDv7 generator: back-to-back races must not collide on
	// their room codes.
	a := New(st, hub.New(), WithClock(testutil.NewManualClock(t0)))
	ctx := context.Background()

	first, err := a.CreateRace(ctx, "host-1", testText)
	require.NoError(t, err)
	second, err := a.CreateRace(ctx, "host-2", testText)
	require.NoError(t, err)
	assert.NotEqual(t, first.RoomCode, second.RoomCode)
}
