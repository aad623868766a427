// Package dedup tracks carrier-assigned delivery identifiers already processed,
// so retried webhook deliveries can be acknowledged without side effects.
//
// The cache is process-local and bounded: once capacity is reached the oldest
// recorded identifier is evicted (insertion order, not LRU-by-access). It does
// not survive restarts and does not coordinate across instances; the carrier's
// own retry window is short enough that a restart gap is acceptable.
package dedup

import (
	"log/slog"
	"sync"
)

// DefaultMessageCacheSize is the capacity used for the inbound message
// delivery cache when none is specified.
const DefaultMessageCacheSize = 5000

// SeenCache is a bounded, insertion-ordered set of delivery identifiers with an
// atomic check-and-insert. It is safe for concurrent use, so two near-simultaneous
// retries of the same identifier cannot both be classified as new.
type SeenCache struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
}

// NewSeenCache creates a cache bounded to the given capacity. Non-positive
// capacities fall back to DefaultMessageCacheSize.
func NewSeenCache(capacity int) *SeenCache {
	if capacity <= 0 {
		slog.Warn("SeenCache: non-positive capacity, using default", "capacity", capacity, "default", DefaultMessageCacheSize)
		capacity = DefaultMessageCacheSize
	}
	return &SeenCache{
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// IsNew reports whether the identifier has not been seen before, recording it
// as a side effect. An empty identifier is always treated as new: without an
// identifier there is nothing to deduplicate on, and dropping such deliveries
// would lose real messages.
func (c *SeenCache) IsNew(id string) bool {
	if id == "" {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return false
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
		slog.Debug("SeenCache: evicted oldest identifier", "evicted", oldest, "capacity", c.capacity)
	}

	c.seen[id] = struct{}{}
	c.order = append(c.order, id)
	return true
}

// Len returns the number of identifiers currently tracked.
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
