package race

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_WireShape(t *testing.T) {
	s := racePair(t)
	data, err := Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "race-1", m["id"])
	assert.Equal(t, "ROOM42", m["room_code"])
	assert.Equal(t, "waiting", m["status"])
	assert.Equal(t, testText, m["expected_text"])
	assert.Equal(t, "host-1", m["host_id"])
	assert.Equal(t, 100.0, m["host_accuracy"])
	assert.Equal(t, "opp-1", m["opponent_id"])
	assert.Equal(t, 1.0, m["version"])

	// Timestamps travel as ISO-8601 strings.
	assert.Equal(t, "2023-11-14T22:13:20.000Z", m["created_at"])
	assert.Equal(t, "2023-11-14T22:13:20.100Z", m["updated_at"])

	// Unset timestamps are omitted, not emitted as zero values.
	_, hasStarted := m["started_at"]
	assert.False(t, hasStarted)
	_, hasWinner := m["winner_id"]
	assert.False(t, hasWinner)
}

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	s := activeRace(t)
	s, err := UpdateProgress(s, "opp-1", 64.5, 72, 94.2, t0+20_000)
	require.NoError(t, err)
	s, err = UpdateProgress(s, "host-1", 100, 81, 97.5, t0+55_000)
	require.NoError(t, err)
	s, _, err = Complete(s, t0+56_000)
	require.NoError(t, err)

	data, err := Marshal(s)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, s, got, "wire round-trip must be lossless")
}

func TestMarshalUnmarshal_RoundTripWithoutOpponent(t *testing.T) {
	s := waitingRace()
	data, err := Marshal(s)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Nil(t, got.Opponent)
}

func TestUnmarshal_RejectsUnknownStatus(t *testing.T) {
	_, err := Unmarshal([]byte(`{"id":"x","status":"paused"}`))
	assert.ErrorContains(t, err, "unknown status")
}

func TestUnmarshal_RejectsBadTimestamp(t *testing.T) {
	_, err := Unmarshal([]byte(`{"id":"x","status":"waiting","created_at":"yesterday"}`))
	assert.ErrorContains(t, err, "parse timestamp")
}

func TestUnmarshal_RejectsMalformedJSON(t *testing.T) {
	_, err := Unmarshal([]byte(`{`))
	assert.Error(t, err)
}
