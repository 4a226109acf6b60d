// Package cache implements the plan cache (§4.7): a thread-safe, bounded
// LRU-by-insertion-timestamp cache keyed by a stable FNV-1a fingerprint of
// the query's filter, limit and sort.
package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/plan"
)

// Key is the FNV-1a fingerprint of one query shape. FNV-1a is mandated by
// §4.7/§9: it is deterministic across process runs, unlike Go's built-in
// map hasher or a randomly-seeded hash, so the same query shape maps to the
// same key in every process run (the spec's explicit stability requirement, not a free choice —
// xxhash is used elsewhere in this module but never here).
type Key uint64

// BuildKey constructs the canonical string from f's CacheKey, limit and
// sort keys (§4.7), then hashes it with FNV-1a.
func BuildKey(f filter.Tree, limit int, sortKeys []plan.SortKey) Key {
	var filterKey string
	if f != nil {
		filterKey = f.CacheKey()
	} else {
		filterKey = "none"
	}

	parts := make([]string, len(sortKeys))
	for i, sk := range sortKeys {
		parts[i] = fmt.Sprintf("%s:%t", sk.Field, sk.Ascending)
	}
	sortKey := strings.Join(parts, ",")

	canonical := fmt.Sprintf("filter=%s;limit=%d;sort=%s", filterKey, limit, sortKey)

	h := fnv.New64a()
	_, _ = h.Write([]byte(canonical))
	return Key(h.Sum64())
}

type entry struct {
	node      plan.Node
	timestamp time.Time
	hitCount  int64
}

// Cache is the process-wide plan cache. Stats() bumps no locks beyond the
// single mutex it shares with Get/Put; critical sections stay map-lookup
// sized, with no I/O held under lock (§5 "shared mutable state").
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	maxSize int
}

// New returns an empty cache bounded to maxSize entries.
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{entries: make(map[Key]*entry), maxSize: maxSize}
}

// Get looks up a cached plan by key. Each hit bumps the entry's hit
// counter (§4.7 "used only for statistics").
func (c *Cache) Get(key Key) (plan.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e.hitCount++
	return e.node, true
}

// Put inserts or replaces the cached plan for key. If inserting a new key
// would exceed maxSize, the entry with the oldest insertion timestamp is
// evicted first (LRU-by-insertion, approximated per §4.7 — this is not a
// true access-order LRU, matching the spec's explicit wording).
func (c *Cache) Put(key Key, node plan.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{node: node, timestamp: time.Now()}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey Key
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.timestamp.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.timestamp
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry)
}

// Stats summarizes the cache's current contents for observability.
type Stats struct {
	Size     int
	MaxSize  int
	HitCount int64
}

// Stats returns a point-in-time snapshot. Not cheap enough to call per
// query; intended for periodic monitoring.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var hits int64
	for _, e := range c.entries {
		hits += e.hitCount
	}
	return Stats{Size: len(c.entries), MaxSize: c.maxSize, HitCount: hits}
}

// sortedKeys returns the cache's keys in ascending order, giving a
// deterministic iteration order; nothing in the package calls it.
func (c *Cache) sortedKeys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
