package cache

import (
	"context"

	"github.com/squadup/squadup/internal/metrics"
)

// Mutation describes one optimistic write against the cache.
//
// V is the mutation's variables type. Keys names the entries the
// speculative update touches; Update applies the speculative change;
// InvalidateKeys names the entries to refetch once the operation
// settles. Update and InvalidateKeys may be nil for mutations with no
// speculative phase.
type Mutation[V any] struct {
	Keys           func(vars V) []Key
	Update         func(c *Cache, vars V)
	InvalidateKeys func(vars V) []Key
}

// Run executes a mutation in three phases.
//
// Phase 1 runs before op and without yielding: in-flight fetches for
// the affected keys are forgotten, their current values snapshotted,
// and the speculative update applied. Readers between phase 1 and
// settlement observe the speculative value.
//
// Phase 2 runs only when op fails: every affected entry is restored to
// its snapshot exactly. Entries that held no value at snapshot time
// return to absence, even when the speculative update created them.
//
// Phase 3 always runs, success or failure: the invalidation keys are
// marked stale so the next read refetches authoritative state. This is
// what guarantees convergence even when the speculative update was
// wrong.
//
// op always runs to completion; Run never abandons a started mutation.
func Run[V any](ctx context.Context, c *Cache, m Mutation[V], vars V, op func(ctx context.Context) error) error {
	var keys []Key
	if m.Keys != nil {
		keys = m.Keys(vars)
	}
	for _, key := range keys {
		c.Forget(key)
	}
	snap := c.snapshotKeys(keys)
	if m.Update != nil {
		m.Update(c, vars)
	}

	err := op(ctx)
	if err != nil {
		c.restore(snap)
		metrics.Mutations.WithLabelValues("rolled_back").Inc()
	} else {
		metrics.Mutations.WithLabelValues("committed").Inc()
	}

	if m.InvalidateKeys != nil {
		for _, key := range m.InvalidateKeys(vars) {
			c.Invalidate(key)
		}
	}
	return err
}
