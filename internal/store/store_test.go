package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/race"
)

const t0 = int64(1_700_000_000_000)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "velotype.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func testRace(t *testing.T) race.Snapshot {
	t.Helper()
	snap := race.New("race-1", "ROOM42", "host-1", "some target text", t0)
	snap, err := race.AddOpponent(snap, "opp-1", true, "beginner", t0+100)
	require.NoError(t, err)
	return snap
}

func TestOpen_AppliesPragmasAndSchema(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))

	var version int
	require.NoError(t, s.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	// Default database paths live under XDG directories that do not
	// exist on a first run.
	path := filepath.Join(t.TempDir(), "velotype", "nested", "velotype.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	assert.FileExists(t, path)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "velotype.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestCreateAndGetRace_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := testRace(t)

	require.NoError(t, s.CreateRace(ctx, snap))

	got, err := s.GetRace(ctx, "race-1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	byCode, err := s.GetRaceByRoomCode(ctx, "ROOM42")
	require.NoError(t, err)
	assert.Equal(t, snap, byCode)
}

func TestGetRace_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRace(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRace_WithoutOpponent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := race.New("race-solo", "SOLO01", "host-1", "text", t0)

	require.NoError(t, s.CreateRace(ctx, snap))
	got, err := s.GetRace(ctx, "race-solo")
	require.NoError(t, err)
	assert.Nil(t, got.Opponent)
	assert.Equal(t, snap, got)
}

func TestSaveRace_CompareAndSwap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := testRace(t)
	require.NoError(t, s.CreateRace(ctx, snap))

	// A transition computed from the stored version lands.
	next, changed, err := race.StartCountdown(snap, t0+200)
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, s.SaveRace(ctx, next))

	got, err := s.GetRace(ctx, "race-1")
	require.NoError(t, err)
	assert.Equal(t, next, got)

	// A second writer holding the stale snapshot loses the CAS.
	stale, changed, err := race.Cancel(snap, "raced", t0+250)
	require.NoError(t, err)
	require.True(t, changed)
	err = s.SaveRace(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// The stored state is untouched by the losing write.
	got, err = s.GetRace(ctx, "race-1")
	require.NoError(t, err)
	assert.Equal(t, race.StatusCountdown, got.Status)
}

func TestSaveRace_UnknownRace(t *testing.T) {
	s := openTestStore(t)
	snap := testRace(t)
	err := s.SaveRace(context.Background(), snap)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRace_NeverTouchesIdentityColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := testRace(t)
	require.NoError(t, s.CreateRace(ctx, snap))

	// Even a snapshot with doctored identity fields cannot move them:
	// the UPDATE statement simply has no such columns.
	evil := snap
	evil.Version++ // pass the CAS
	require.NoError(t, s.SaveRace(ctx, evil))

	got, err := s.GetRace(ctx, "race-1")
	require.NoError(t, err)
	assert.Equal(t, "ROOM42", got.RoomCode)
	assert.Equal(t, "host-1", got.HostID)
	assert.Equal(t, "some target text", got.ExpectedText)
	assert.Equal(t, t0, got.CreatedAtMs)
}

func TestKeystrokes_AppendAndReplayOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []metrics.Keystroke{
		{SessionID: "sess-1", CharExpected: "h", CharTyped: "h", EventType: metrics.EventKeyDown, TimestampMs: 1, IsCorrect: true},
		{SessionID: "sess-1", CharExpected: "i", CharTyped: "u", EventType: metrics.EventKeyDown, TimestampMs: 2, CursorIndex: 1},
		{SessionID: "sess-1", EventType: metrics.EventKeyDown, TimestampMs: 3, CursorIndex: 2, IsBackspace: true},
		{SessionID: "sess-1", CharExpected: "i", CharTyped: "i", EventType: metrics.EventKeyDown, TimestampMs: 4, CursorIndex: 1, IsCorrect: true},
	}
	require.NoError(t, s.AppendKeystrokes(ctx, records))

	got, err := s.Keystrokes(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, records, got)
	assert.Equal(t, "hi", metrics.ReconstructTypedText(got))
}

func TestKeystrokes_SessionsIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendKeystrokes(ctx, []metrics.Keystroke{
		{SessionID: "sess-a", CharTyped: "a", EventType: metrics.EventKeyDown, TimestampMs: 1},
		{SessionID: "sess-b", CharTyped: "b", EventType: metrics.EventKeyDown, TimestampMs: 1},
	}))

	got, err := s.Keystrokes(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].CharTyped)
}

func TestKeystrokes_EmptyBatchAndEmptySession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendKeystrokes(ctx, nil))
	got, err := s.Keystrokes(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResults_WriteOnceIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := metrics.ComputeSession([]metrics.Keystroke{
		{SessionID: "sess-1", CharExpected: "h", CharTyped: "h", EventType: metrics.EventKeyDown, TimestampMs: 0, IsCorrect: true},
		{SessionID: "sess-1", CharExpected: "i", CharTyped: "i", EventType: metrics.EventKeyDown, TimestampMs: 200, CursorIndex: 1, IsCorrect: true},
	}, "hi", "hi")

	first := Result{
		RaceID:        "race-1",
		ParticipantID: "host-1",
		Metrics:       m,
		Flagged:       true,
		Flags:         []string{"raw wpm mismatch: client reported 300.00, computed 60.00"},
		CreatedAtMs:   t0,
	}
	require.NoError(t, s.SaveResult(ctx, first))

	// A retried write with different content is silently ignored.
	second := first
	second.Flagged = false
	second.Flags = nil
	require.NoError(t, s.SaveResult(ctx, second))

	got, err := s.GetResult(ctx, "race-1", "host-1")
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestGetResult_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetResult(context.Background(), "race-1", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
