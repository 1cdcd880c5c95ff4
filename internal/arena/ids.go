package arena

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for races and typing sessions.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, making IDs
// sortable by creation time, which keeps race listings and logs in
// chronological order for free.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs for testing, enabling
// deterministic execution and golden comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns IDs in order.
// Generate panics once all IDs are consumed - a fail-fast signal that a
// test did not provision enough of them.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// roomCodeFrom derives a six-character join code from a race ID. The code
// is taken from the tail of the ID: UUIDv7 front-loads its timestamp, so
// the leading characters are nearly identical for IDs minted close
// together, while the tail carries the random bits. Room codes are unique
// in the store, so colliding codes would reject the second race outright.
func roomCodeFrom(raceID string) string {
	compact := strings.ToUpper(strings.ReplaceAll(raceID, "-", ""))
	if len(compact) < 6 {
		return compact
	}
	return compact[len(compact)-6:]
}
