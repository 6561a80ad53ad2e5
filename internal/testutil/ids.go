package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates readable, deterministic ids: "cart_0001",
// "item_0001", "item_0002", ... with one counter per prefix.
//
// This enables golden snapshot comparison: the same scenario always produces
// the same ids. Implements commerce.IDGenerator.
//
// Thread-safety: safe for concurrent use.
type SequentialIDs struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSequentialIDs creates a generator with all counters at zero.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{counters: make(map[string]int)}
}

// Generate returns the next id for prefix.
func (g *SequentialIDs) Generate(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s_%04d", prefix, g.counters[prefix])
}

// Reset zeroes all counters.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.counters)
}
