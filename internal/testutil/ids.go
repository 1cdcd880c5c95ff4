package testutil

import (
	"fmt"
	"sync"
)

// SeqIDGenerator generates readable sequential identifiers for tests.
//
// Unlike the arena's FixedGenerator, which returns a provisioned list and
// panics when it runs out, SeqIDGenerator never exhausts: it is useful for
// scenarios where the number of IDs drawn is not known up front but each
// draw must still be deterministic.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeqIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSeqIDGenerator creates a generator producing "<prefix>-1",
// "<prefix>-2", and so on. An empty prefix defaults to "test-id".
func NewSeqIDGenerator(prefix string) *SeqIDGenerator {
	if prefix == "" {
		prefix = "test-id"
	}
	return &SeqIDGenerator{prefix: prefix}
}

// Generate returns the next identifier in sequence.
func (g *SeqIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
