// Package cache is the keyed read cache shared by the query side and evicted by
// the orchestrator.
//
// Entries live in named scopes (one per query shape). Keys start with the owning
// user id so a user's entries can be evicted by prefix. There is no TTL and no
// size bound: entries leave only through eviction.
package cache

import (
	"strings"
	"sync"

	"github.com/and161185/vidtags/internal/metrics"
)

type bucket struct {
	mu      sync.RWMutex
	entries map[string]any
	// gen advances on every eviction; a fill started under an older gen is dropped.
	gen uint64
}

// Cache is a set of scopes. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	metrics *metrics.Metrics
}

// New returns an empty cache. m may be nil.
func New(m *metrics.Metrics) *Cache {
	return &Cache{buckets: map[string]*bucket{}, metrics: m}
}

func (c *Cache) bucket(scope string) *bucket {
	c.mu.RLock()
	b, ok := c.buckets[scope]
	c.mu.RUnlock()
	if ok {
		return b
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok = c.buckets[scope]; !ok {
		b = &bucket{entries: map[string]any{}}
		c.buckets[scope] = b
	}
	return b
}

// Get returns the raw value stored under key.
func (c *Cache) Get(scope, key string) (any, bool) {
	b := c.bucket(scope)
	b.mu.RLock()
	v, ok := b.entries[key]
	b.mu.RUnlock()
	if ok {
		c.metrics.CacheHit(scope)
	} else {
		c.metrics.CacheMiss(scope)
	}
	return v, ok
}

// Ticket marks the start of a fill. Take it before reading the store.
type Ticket struct {
	scope string
	gen   uint64
}

// Gen is the generation the ticket was taken under.
func (t Ticket) Gen() uint64 { return t.gen }

// Ticket returns the current generation of scope.
func (c *Cache) Ticket(scope string) Ticket {
	b := c.bucket(scope)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Ticket{scope: scope, gen: b.gen}
}

// PutIfFresh stores v only if no eviction hit the scope since t was taken.
// It reports whether the value was stored.
func (c *Cache) PutIfFresh(t Ticket, key string, v any) bool {
	b := c.bucket(t.scope)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != t.gen {
		return false
	}
	b.entries[key] = v
	return true
}

// EvictKey removes one entry.
func (c *Cache) EvictKey(scope, key string) {
	b := c.bucket(scope)
	b.mu.Lock()
	b.gen++
	_, ok := b.entries[key]
	delete(b.entries, key)
	b.mu.Unlock()
	if ok {
		c.metrics.CacheEvicted(scope, 1)
	}
}

// EvictScope removes every entry of scope whose key starts with prefix and
// returns how many were removed. An empty prefix clears the scope.
func (c *Cache) EvictScope(scope, prefix string) int {
	b := c.bucket(scope)
	b.mu.Lock()
	b.gen++
	n := 0
	for k := range b.entries {
		if strings.HasPrefix(k, prefix) {
			delete(b.entries, k)
			n++
		}
	}
	b.mu.Unlock()
	c.metrics.CacheEvicted(scope, n)
	return n
}

// EvictOwner evicts the entries of owner in every scope.
func (c *Cache) EvictOwner(owner string) int {
	p := OwnerPrefix(owner)
	n := 0
	for _, s := range c.scopes() {
		n += c.EvictScope(s, p)
	}
	return n
}

func (c *Cache) scopes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.buckets))
	for s := range c.buckets {
		out = append(out, s)
	}
	return out
}
