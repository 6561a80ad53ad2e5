// Package cache is the unified response cache shared by the cart engine and
// other readers.
//
// Values are stored under a string key with a TTL and a set of tags.
// Invalidate drops every entry carrying the tag or whose key starts with it.
// Concurrent misses on the same key compute once.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/cartsync/internal/engine"
)

// DefaultTTL applies when Get is called with a non-positive TTL.
const DefaultTTL = time.Minute

// Tags dropped by InvalidateAfterCartChange, besides engine.TagCart.
const (
	TagShipping = "shipping"
	TagPayment  = "payment"
)

var _ engine.Cache = (*Cache)(nil)

type entry struct {
	value   any
	expires time.Time
	tags    []string
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits          int64
	Misses        int64
	Invalidations int64
}

// Cache is an in-process get-or-compute cache.
//
// A compute that started before an invalidation is returned to its callers
// but not stored, so an invalidated value never reappears.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64

	group  singleflight.Group
	now    func() time.Time
	ttl    time.Duration
	logger *slog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithNow sets the clock used for expiry. Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithDefaultTTL sets the TTL used when Get is called without one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
		ttl:     DefaultTTL,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the live value for key, or runs compute, stores the result
// under tags for ttl and returns it. Errors are not cached.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, tags []string, compute engine.ComputeFunc) (any, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	if v, ok := c.live(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	// Callers arriving after an invalidation start a new flight.
	flight := fmt.Sprintf("%d|%s", gen, key)
	v, err, shared := c.group.Do(flight, func() (any, error) {
		if v, ok := c.live(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v, ttl, tags, gen)
		return v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache compute %s: %w", key, err)
	}
	if shared {
		c.logger.Debug("cache compute shared", "key", key)
	}
	return v, nil
}

// live returns the stored value for key if it has not expired.
func (c *Cache) live(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key string, v any, ttl time.Duration, tags []string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	c.entries[key] = entry{
		value:   v,
		expires: c.now().Add(ttl),
		tags:    append([]string(nil), tags...),
	}
}

// Invalidate drops every entry tagged tag or whose key starts with tag.
func (c *Cache) Invalidate(tag string) {
	c.invalidate([]string{tag})
}

// InvalidateAfterCartChange drops everything derived from cart content.
func (c *Cache) InvalidateAfterCartChange() {
	c.invalidate([]string{engine.TagCart, TagShipping, TagPayment})
}

func (c *Cache) invalidate(tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	dropped := 0
	for key, e := range c.entries {
		if matches(key, e.tags, tags) {
			delete(c.entries, key)
			dropped++
		}
	}
	c.invalidations.Add(1)
	c.logger.Debug("cache invalidated", "tags", tags, "dropped", dropped)
}

func matches(key string, entryTags, tags []string) bool {
	for _, t := range tags {
		if t == "" {
			continue
		}
		if strings.HasPrefix(key, t) {
			return true
		}
		for _, et := range entryTags {
			if et == t {
				return true
			}
		}
	}
	return false
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the cumulative counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
