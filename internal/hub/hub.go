// Package hub fans race snapshots out to subscribers.
//
// The hub is the in-process realization of the realtime transport the
// engine needs: "broadcast the resulting snapshot to the other
// participant". Wire encoding is somebody else's concern; subscribers
// receive race.Snapshot values.
package hub

import (
	"sync"

	"github.com/velotype/velotype/internal/race"
)

// subscriberBuffer bounds how far a subscriber may fall behind before
// updates are dropped. Snapshots are cumulative, so dropping an old one
// loses nothing: the next delivery carries the full state.
const subscriberBuffer = 16

// Hub routes published race snapshots to the subscribers of that race.
// Safe for concurrent use. A Hub never blocks a publisher on a slow
// subscriber.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]chan race.Snapshot
	next int
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[string]map[int]chan race.Snapshot)}
}

// Subscribe registers interest in one race's snapshots. The returned
// cancel function unregisters and closes the channel; it is safe to call
// more than once.
func (h *Hub) Subscribe(raceID string) (<-chan race.Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan race.Snapshot, subscriberBuffer)
	if h.subs[raceID] == nil {
		h.subs[raceID] = make(map[int]chan race.Snapshot)
	}
	id := h.next
	h.next++
	h.subs[raceID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[raceID], id)
			if len(h.subs[raceID]) == 0 {
				delete(h.subs, raceID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber of its race. Delivery
// is non-blocking: a subscriber whose buffer is full misses this update
// and catches up with the next one.
func (h *Hub) Publish(snap race.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[snap.ID] {
		select {
		case ch <- snap:
		default:
		}
	}
}

// SubscriberCount reports how many subscribers a race currently has.
// Used for diagnostics and tests.
func (h *Hub) SubscriberCount(raceID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[raceID])
}
