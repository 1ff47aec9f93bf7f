package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/oakley-grocery/backend/internal/domain"
	"github.com/oakley-grocery/backend/internal/metrics"
)

// DefaultMaxStale bounds how old an entry may be and still be served as a
// stale fallback.
const DefaultMaxStale = 24 * time.Hour

const layerMemory = "memory"

// cacheItem represents a single payload and the time it was written
type cacheItem struct {
	Value     []byte
	WrittenAt time.Time
}

// MemoryCache is a thread-safe in-process result cache. Entries are evicted
// once they pass the staleness horizon or the size bound is reached.
type MemoryCache struct {
	data     *expirable.LRU[string, cacheItem]
	maxStale time.Duration
	now      func() time.Time
}

// NewMemoryCache creates a new in-memory cache holding at most size entries
// (0 means unbounded).
func NewMemoryCache(size int, maxStale time.Duration) *MemoryCache {
	if size < 0 {
		size = 0
	}
	if maxStale <= 0 {
		maxStale = DefaultMaxStale
	}

	return &MemoryCache{
		data:     expirable.NewLRU[string, cacheItem](size, nil, maxStale),
		maxStale: maxStale,
		now:      time.Now,
	}
}

// Get retrieves a value written no longer than ttl ago
func (c *MemoryCache) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	item, ok := c.data.Get(key)
	if !ok || !fresh(item.WrittenAt, c.now(), ttl) {
		metrics.CacheLookupsTotal.WithLabelValues(layerMemory, metrics.CacheMiss).Inc()
		return nil, domain.ErrCacheMiss
	}

	metrics.CacheLookupsTotal.WithLabelValues(layerMemory, metrics.CacheHit).Inc()
	return item.Value, nil
}

// GetStale retrieves a value regardless of ttl, as long as it is within the
// staleness horizon
func (c *MemoryCache) GetStale(ctx context.Context, key string) ([]byte, error) {
	item, ok := c.data.Get(key)
	if !ok || !fresh(item.WrittenAt, c.now(), c.maxStale) {
		metrics.CacheLookupsTotal.WithLabelValues(layerMemory, metrics.CacheStaleMiss).Inc()
		return nil, domain.ErrCacheMiss
	}

	metrics.CacheLookupsTotal.WithLabelValues(layerMemory, metrics.CacheStale).Inc()
	return item.Value, nil
}

// Set stores a value stamped with the current time, replacing any previous one
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.data.Add(key, cacheItem{
		Value:     stored,
		WrittenAt: c.now(),
	})
	return nil
}

// fresh reports whether an entry written at writtenAt is no older than ttl.
func fresh(writtenAt, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(writtenAt) <= ttl
}
