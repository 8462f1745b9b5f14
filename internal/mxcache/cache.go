// Package mxcache memoizes mail-exchange answers per domain so the mx and
// mx_preference lookup types share a single MX query.
package mxcache

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/ndejong/domain-email-records/internal/metrics"
)

// DefaultSize is the number of domains kept before the least recently used is evicted.
const DefaultSize = 100

// Entry holds the exchanges and preferences of one MX answer, index-aligned.
type Entry struct {
	Exchanges   []string
	Preferences []string
}

// ComputeFunc performs the single MX query for a domain on a cache miss.
type ComputeFunc func(ctx context.Context, domain string) Entry

// Stats reports cache effectiveness for a cache lifetime.
type Stats struct {
	Hits     int64
	Misses   int64
	Computes int64
}

// Cache is a bounded LRU of MX entries keyed by domain. Concurrent
// GetOrCompute calls for the same domain share one ComputeFunc call.
type Cache struct {
	mu      sync.Mutex // protects entries
	entries *lru[string, Entry]
	group   singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	computes atomic.Int64
}

// New returns a cache holding at most size domains. It panics if size < 1.
func New(size int) *Cache {
	return &Cache{entries: newLRU[string, Entry](size)}
}

// GetOrCompute returns the cached entry for domain, calling compute at most
// once per domain while the entry stays resident.
func (c *Cache) GetOrCompute(ctx context.Context, domain string, compute ComputeFunc) Entry {
	if e, ok := c.get(domain); ok {
		c.hits.Inc()
		metrics.TrackStatus("mx.cache", "hit")
		return e.clone()
	}

	c.misses.Inc()
	metrics.TrackStatus("mx.cache", "miss")

	v, _, _ := c.group.Do(domain, func() (interface{}, error) {
		// a flight that finished between our miss and Do has already stored it
		if e, ok := c.get(domain); ok {
			return e, nil
		}
		c.computes.Inc()
		e := compute(ctx, domain)
		if len(e.Exchanges) != len(e.Preferences) {
			panic("mxcache: exchanges and preferences length mismatch")
		}
		c.mu.Lock()
		c.entries.Add(domain, e)
		c.mu.Unlock()
		return e, nil
	})
	return v.(Entry).clone()
}

// Len returns the number of cached domains.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns a snapshot of the hit, miss and compute counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computes: c.computes.Load(),
	}
}

func (c *Cache) get(domain string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(domain)
}

// clone keeps callers from mutating the cached slices.
func (e Entry) clone() Entry {
	return Entry{
		Exchanges:   append([]string(nil), e.Exchanges...),
		Preferences: append([]string(nil), e.Preferences...),
	}
}
