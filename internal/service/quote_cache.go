package service

import (
	"time"

	"quote_notifier/internal/domain"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultCacheTTL is how long a fetched quote set stays fresh.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	quotes    domain.QuoteSet
	fetchedAt time.Time
}

// QuoteCache keeps the latest quote set per pair-set key.
// Entries are never evicted; staleness is checked on read.
type QuoteCache struct {
	ttl     time.Duration
	now     domain.Clock
	entries *xsync.Map[string, cacheEntry]
}

// NewQuoteCache creates a cache. A non-positive ttl falls back to DefaultCacheTTL.
func NewQuoteCache(ttl time.Duration, now domain.Clock) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &QuoteCache{
		ttl:     ttl,
		now:     now,
		entries: xsync.NewMap[string, cacheEntry](),
	}
}

// Get returns the cached set for key if it is younger than the TTL.
func (c *QuoteCache) Get(key string) (domain.QuoteSet, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.quotes, true
}

// Put replaces the entry for key, stamped with the current time.
func (c *QuoteCache) Put(key string, quotes domain.QuoteSet) {
	c.entries.Store(key, cacheEntry{quotes: quotes, fetchedAt: c.now()})
}

// Len reports the number of stored keys, stale ones included.
func (c *QuoteCache) Len() int {
	return c.entries.Size()
}
