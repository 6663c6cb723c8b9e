package cache

import "sync"

// Seeder transfers server-computed values into the cache at most once.
// Page loaders assemble a snapshot of several views in one pass; the
// Seeder hands that snapshot to the cache without ever overwriting
// entries the client has since refreshed or speculatively updated.
type Seeder struct {
	cache *Cache

	mu     sync.Mutex
	seeded bool
}

// NewSeeder wraps c with one-shot seeding semantics. A Seeder belongs
// to a single page load; create a new one per load.
func NewSeeder(c *Cache) *Seeder {
	return &Seeder{cache: c}
}

// Seed stores every value in the snapshot and marks the entries fresh.
// Only the first call has any effect; later calls report false and
// leave the cache untouched. Empty and nil values are seeded like any
// other: an empty list is real data, not a missing entry.
func (s *Seeder) Seed(values map[Key]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seeded {
		return false
	}
	s.seeded = true
	for key, value := range values {
		s.cache.Set(key, value)
	}
	return true
}
