package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs returns predetermined call IDs, then falls back to numbered ones.
//
// Example:
//
//	ids := NewFixedIDs("call-a")
//	ids.Next() // "call-a"
//	ids.Next() // "call-2"
//
// Thread-safety: FixedIDs is safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	n   int
}

// NewFixedIDs creates a generator that returns ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Next returns the next ID. Usable as method.WithIDGenerator(ids.Next).
func (g *FixedIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if g.n <= len(g.ids) {
		return g.ids[g.n-1]
	}
	return fmt.Sprintf("call-%d", g.n)
}
