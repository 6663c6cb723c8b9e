// Package cache implements the reactive query cache shared by the page
// loaders and the mutation paths.
//
// The cache is the only shared mutable structure in the system. It is
// mutated exclusively through three doors: Fetch (authoritative reads),
// the Seeder (one-shot transfer of server-computed values), and the
// optimistic mutation engine (Run). UI-facing code never writes entries
// directly.
//
// Staleness is tracked with a global invalidation sequence: every
// Invalidate or Forget bumps the sequence, and a fetch that started
// before a later invalidation cannot mark the entry fresh. This is what
// keeps a slow refetch from overwriting a newer invalidation.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/squadup/squadup/internal/metrics"
)

// Key identifies one cache entry. Keys are hierarchical, slash-joined;
// InvalidatePrefix uses the hierarchy.
type Key string

// NewKey joins parts into a hierarchical key.
func NewKey(parts ...string) Key {
	return Key(strings.Join(parts, "/"))
}

type entry struct {
	value    any
	hasValue bool
	stale    bool
	// invalidSeq is the global sequence at the last Invalidate or
	// Forget of this key. Fetches that started at or before it must
	// not mark the entry fresh.
	invalidSeq uint64
}

// Cache is an application-scoped reactive query cache. Construct once
// at startup; it needs no teardown but supports explicit invalidation.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	seq     atomic.Uint64
	flight  singleflight.Group
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]*entry)}
}

// Get returns the cached value for key, fresh or stale. The second
// return is false when no value has ever been stored.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Set stores a value and marks it fresh. Reserved for the seeding
// bridge and the mutation engine; services read through Fetch.
func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	e.value = value
	e.hasValue = true
	e.stale = false
}

// Fetch returns the cached value when fresh, otherwise runs fn and
// stores the result. Concurrent fetches of the same key are collapsed
// into a single fn call.
func (c *Cache) Fetch(ctx context.Context, key Key, fn func(ctx context.Context) (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.hasValue && !e.stale {
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		return e.value, nil
	}
	started := c.seq.Load()
	c.mu.Unlock()
	metrics.CacheMisses.Inc()

	value, err, _ := c.flight.Do(string(key), func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.invalidSeq > started {
		// The key was invalidated after this fetch began. Hand the
		// value to the caller but leave the entry stale so the next
		// read refetches.
		return value, nil
	}
	e := c.ensure(key)
	e.value = value
	e.hasValue = true
	e.stale = false
	return value, nil
}

// Invalidate marks the entry stale so the next Fetch refetches
// authoritative data. Also guards against in-flight fetches that
// started earlier.
func (c *Cache) Invalidate(key Key) {
	seq := c.seq.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	e.stale = true
	e.invalidSeq = seq
	metrics.CacheInvalidations.Inc()
}

// InvalidatePrefix marks every entry at or under prefix stale.
func (c *Cache) InvalidatePrefix(prefix Key) {
	seq := c.seq.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if key == prefix || strings.HasPrefix(string(key), string(prefix)+"/") {
			e.stale = true
			e.invalidSeq = seq
			metrics.CacheInvalidations.Inc()
		}
	}
}

// Forget discards any in-flight fetch for key without touching the
// stored value. The mutation engine calls it before a speculative
// apply so a racing refetch cannot clobber the optimistic value.
func (c *Cache) Forget(key Key) {
	seq := c.seq.Add(1)
	c.flight.Forget(string(key))
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	e.invalidSeq = seq
}

// ensure returns the entry for key, creating a placeholder if needed.
// Caller must hold c.mu.
func (c *Cache) ensure(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// keySnapshot preserves an entry's exact pre-mutation state.
type keySnapshot struct {
	value   any
	present bool
	stale   bool
}

// snapshotKeys captures the current state of the given keys for
// rollback.
func (c *Cache) snapshotKeys(keys []Key) map[Key]keySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := make(map[Key]keySnapshot, len(keys))
	for _, key := range keys {
		if e, ok := c.entries[key]; ok && e.hasValue {
			snap[key] = keySnapshot{value: e.value, present: true, stale: e.stale}
		} else {
			snap[key] = keySnapshot{}
		}
	}
	return snap
}

// restore puts every snapshotted entry back exactly as captured. Keys
// that held no value at snapshot time return to absence, so a
// speculative value created on an empty key cannot outlive a failed
// mutation. The entry struct stays so its invalidation sequence keeps
// guarding in-flight fetches.
func (c *Cache) restore(snap map[Key]keySnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, s := range snap {
		e := c.ensure(key)
		if !s.present {
			e.value = nil
			e.hasValue = false
			e.stale = false
			continue
		}
		e.value = s.value
		e.hasValue = true
		e.stale = s.stale
	}
}

// FetchAs is a typed wrapper around Fetch.
func FetchAs[T any](ctx context.Context, c *Cache, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	value, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T, not %T", key, value, zero)
	}
	return typed, nil
}

// UpdateAs applies a typed in-place transformation to a cached value,
// used by speculative updates. fn receives the current value (zero and
// ok=false when absent) and returns the replacement. The replacement
// must be a new value: mutating the old one in place would corrupt
// rollback snapshots.
func UpdateAs[T any](c *Cache, key Key, fn func(old T, ok bool) T) {
	var old T
	value, present := c.Get(key)
	if present {
		typed, ok := value.(T)
		if !ok {
			present = false
		} else {
			old = typed
		}
	}
	c.Set(key, fn(old, present))
}
