package registry

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Kind is the query type part of a cache key.
type Kind string

const (
	KindSearch     Kind = "search"
	KindStatistics Kind = "statistics"
)

// CacheKey identifies a cached answer: the query kind plus its normalized
// argument (empty for statistics).
type CacheKey struct {
	Kind Kind
	Arg  string
}

// queryCache is a read-through cache with a fixed TTL. Hits do not extend
// an entry's life. Expired entries stay in memory until the same key is
// written again or the cache is cleared; there is no capacity bound.
type queryCache struct {
	c *ttlcache.Cache[CacheKey, any]
}

func newQueryCache(ttl time.Duration) *queryCache {
	return &queryCache{c: ttlcache.New(
		ttlcache.WithTTL[CacheKey, any](ttl),
		ttlcache.WithDisableTouchOnHit[CacheKey, any](),
	)}
}

func (q *queryCache) get(k CacheKey) (any, bool) {
	item := q.c.Get(k)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (q *queryCache) set(k CacheKey, v any) {
	q.c.Set(k, v, ttlcache.DefaultTTL)
}

func (q *queryCache) len() int { return q.c.Len() }

func (q *queryCache) clear() { q.c.DeleteAll() }
