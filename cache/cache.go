// Package cache provides an in-process TTL cache for assembled graph
// views. Keys are namespaced strings so a bot's entries can be cleared as
// a prefix after any successful write.
package cache

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Cache is a TTL key/value store safe for concurrent use. Expired entries
// are evicted eagerly on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value   any
	expires time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Key derives a deterministic cache key from a namespace and the
// arguments that parameterize the cached computation.
func Key(namespace string, args ...any) string {
	h := fnv.New64a()
	fmt.Fprint(h, args...)
	return namespace + ":" + strconv.FormatUint(h.Sum64(), 16)
}

// Set stores a value with an absolute expiry ttl from now.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(ttl)}
}

// Get returns the value for key and whether it was found. An expired
// entry is treated as not found and removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Delete removes a single key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteByPrefix removes every key with the given prefix and returns how
// many entries were dropped.
func (c *Cache) DeleteByPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of entries, including any not yet evicted
// expired ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
