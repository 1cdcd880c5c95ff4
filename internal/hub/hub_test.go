package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velotype/velotype/internal/race"
)

func snap(raceID string, version int64) race.Snapshot {
	s := race.New(raceID, "ROOM", "host", "text", 0)
	s.Version = version
	return s
}

func TestPublish_ReachesAllSubscribersOfThatRace(t *testing.T) {
	h := New()

	ch1, cancel1 := h.Subscribe("race-1")
	defer cancel1()
	ch2, cancel2 := h.Subscribe("race-1")
	defer cancel2()
	other, cancelOther := h.Subscribe("race-2")
	defer cancelOther()

	h.Publish(snap("race-1", 3))

	got1 := <-ch1
	got2 := <-ch2
	assert.Equal(t, int64(3), got1.Version)
	assert.Equal(t, int64(3), got2.Version)
	assert.Empty(t, other, "race-2 subscriber must not see race-1 traffic")
}

func TestPublish_NoSubscribersIsFine(t *testing.T) {
	h := New()
	assert.NotPanics(t, func() { h.Publish(snap("race-1", 1)) })
}

func TestPublish_SlowSubscriberDropsNotBlocks(t *testing.T) {
	h := New()
	ch, cancel := h.Subscribe("race-1")
	defer cancel()

	// Overflow the buffer; Publish must never block.
	for v := int64(1); v <= subscriberBuffer+10; v++ {
		h.Publish(snap("race-1", v))
	}

	// The earliest snapshots are there, the overflow was dropped.
	require.Len(t, ch, subscriberBuffer)
	first := <-ch
	assert.Equal(t, int64(1), first.Version)
}

func TestCancel_UnsubscribesAndCloses(t *testing.T) {
	h := New()
	ch, cancel := h.Subscribe("race-1")
	require.Equal(t, 1, h.SubscriberCount("race-1"))

	cancel()
	assert.Equal(t, 0, h.SubscriberCount("race-1"))

	_, open := <-ch
	assert.False(t, open, "channel must be closed after cancel")

	assert.NotPanics(t, cancel, "double cancel is safe")
}
