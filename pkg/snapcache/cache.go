// Package snapcache memoizes snapshot tables per (filter context, partition)
// with a fixed time-to-live.
//
// Entries live in buckets keyed by model.FilterContext.Key. Changing any
// non-partition filter therefore lands in a fresh, empty bucket; nothing is
// invalidated piecemeal. Expired entries are not swept: a lookup treats them
// as absent and the next successful fetch overwrites them.
package snapcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// DefaultTTL is how long a fetched snapshot stays valid.
const DefaultTTL = 5 * time.Minute

// Fetcher is the uncached snapshot source.
type Fetcher interface {
	Fetch(ctx context.Context, fc model.FilterContext, partition string) (model.SnapshotTable, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context, fc model.FilterContext, partition string) (model.SnapshotTable, error)

// Fetch calls f.
func (f FetchFunc) Fetch(ctx context.Context, fc model.FilterContext, partition string) (model.SnapshotTable, error) {
	return f(ctx, fc, partition)
}

// Entry is a cached table and when it was fetched.
type Entry struct {
	Data      model.SnapshotTable
	FetchedAt time.Time
}

// Stats summarizes cache activity since creation.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Failures int64 `json:"failures"` // Misses whose fetch produced no table
	Shared   int64 `json:"shared"`   // Misses that joined an in-flight fetch
	Buckets  int   `json:"buckets"`
	Entries  int   `json:"entries"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source used for FetchedAt and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	source Fetcher
	ttl    time.Duration
	now    func() time.Time
	flight singleflight.Group

	mu      sync.Mutex
	buckets map[string]map[string]Entry
	stats   Stats
}

// New creates a cache in front of source.
func New(source Fetcher, opts ...Option) *Cache {
	c := &Cache{
		source:  source,
		ttl:     DefaultTTL,
		now:     time.Now,
		buckets: make(map[string]map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the table for partition under fc, fetching it on a miss. It
// returns nil when the snapshot cannot be obtained; failures are never
// cached, so the next Get retries.
//
// Concurrent Gets for the same key share a single fetch. The shared fetch
// is detached from the caller's cancellation so that one caller giving up
// does not fail the others; the source's own timeout still bounds it.
func (c *Cache) Get(ctx context.Context, fc model.FilterContext, partition string) model.SnapshotTable {
	bucket := fc.Key()
	if data, ok := c.lookup(bucket, partition); ok {
		metrics.SnapshotCache.Hit()
		return data
	}
	metrics.SnapshotCache.Miss()

	v, _, shared := c.flight.Do(bucket+"\x00"+partition, func() (any, error) {
		// A flight that finished between lookup and Do may have filled it.
		if data, ok := c.peek(bucket, partition); ok {
			return data, nil
		}
		data, err := c.source.Fetch(context.WithoutCancel(ctx), fc, partition)
		if err != nil || data == nil {
			c.mu.Lock()
			c.stats.Failures++
			c.mu.Unlock()
			debug.Log("snapcache: %s [%s] unavailable: %v", partition, bucket, err)
			return model.SnapshotTable(nil), nil
		}
		c.store(bucket, partition, data)
		return data, nil
	})
	if shared {
		c.mu.Lock()
		c.stats.Shared++
		c.mu.Unlock()
	}
	return v.(model.SnapshotTable)
}

func (c *Cache) lookup(bucket, partition string) (model.SnapshotTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.validLocked(bucket, partition); ok {
		c.stats.Hits++
		return e.Data, true
	}
	c.stats.Misses++
	return nil, false
}

func (c *Cache) peek(bucket, partition string) (model.SnapshotTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.validLocked(bucket, partition)
	return e.Data, ok
}

func (c *Cache) validLocked(bucket, partition string) (Entry, bool) {
	b, ok := c.buckets[bucket]
	if !ok {
		return Entry{}, false
	}
	e, ok := b[partition]
	if !ok || c.now().Sub(e.FetchedAt) >= c.ttl {
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) store(bucket, partition string, data model.SnapshotTable) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[bucket]
	if !ok {
		b = make(map[string]Entry)
		c.buckets[bucket] = b
	}
	b[partition] = Entry{Data: data, FetchedAt: c.now()}
}

// Peek returns the live entry for partition under fc without fetching.
func (c *Cache) Peek(fc model.FilterContext, partition string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked(fc.Key(), partition)
}

// Invalidate drops every bucket.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buckets = make(map[string]map[string]Entry)
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Buckets = len(c.buckets)
	for _, b := range c.buckets {
		s.Entries += len(b)
	}
	return s
}
