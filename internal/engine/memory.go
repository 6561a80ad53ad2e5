package engine

import (
	"context"
	"sync"
	"time"
)

// MemoryCartIDs is an in-process CartIDStore.
// Thread-safety: safe for concurrent use.
type MemoryCartIDs struct {
	mu sync.Mutex
	id string
}

// NewMemoryCartIDs creates an empty MemoryCartIDs.
func NewMemoryCartIDs() *MemoryCartIDs {
	return &MemoryCartIDs{}
}

func (m *MemoryCartIDs) CartID(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *MemoryCartIDs) SetCartID(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = cartID
	return nil
}

func (m *MemoryCartIDs) ClearCartID(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = ""
	return nil
}

// passthroughCache computes on every Get. Used when no cache is configured.
type passthroughCache struct{}

func (passthroughCache) Get(ctx context.Context, _ string, _ time.Duration, _ []string, compute ComputeFunc) (any, error) {
	return compute(ctx)
}

func (passthroughCache) Invalidate(string) {}

func (passthroughCache) InvalidateAfterCartChange() {}
