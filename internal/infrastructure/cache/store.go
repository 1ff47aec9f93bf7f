package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oakley-grocery/backend/internal/domain"
	"github.com/oakley-grocery/backend/internal/metrics"
)

const layerStore = "store"

// cacheEntry is the durable row behind StoreCache
type cacheEntry struct {
	CacheKey  string    `gorm:"column:cache_key;primaryKey;size:512"`
	Payload   []byte    `gorm:"column:payload;not null"`
	WrittenAt time.Time `gorm:"column:written_at;not null;index"`
}

func (cacheEntry) TableName() string {
	return "cache_entries"
}

// StoreCache is a result cache persisted in the application database, so a
// restarted process starts warm.
type StoreCache struct {
	db       *gorm.DB
	maxStale time.Duration
	now      func() time.Time
}

// NewStoreCache creates the cache table if needed and returns the cache.
func NewStoreCache(db *gorm.DB, maxStale time.Duration) (*StoreCache, error) {
	if maxStale <= 0 {
		maxStale = DefaultMaxStale
	}
	if err := db.AutoMigrate(&cacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache table: %w", err)
	}

	return &StoreCache{
		db:       db,
		maxStale: maxStale,
		now:      time.Now,
	}, nil
}

// Get retrieves a value written no longer than ttl ago
func (c *StoreCache) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	entry, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil || !fresh(entry.WrittenAt, c.now(), ttl) {
		metrics.CacheLookupsTotal.WithLabelValues(layerStore, metrics.CacheMiss).Inc()
		return nil, domain.ErrCacheMiss
	}

	metrics.CacheLookupsTotal.WithLabelValues(layerStore, metrics.CacheHit).Inc()
	return entry.Payload, nil
}

// GetStale retrieves a value regardless of ttl, as long as it is within the
// staleness horizon
func (c *StoreCache) GetStale(ctx context.Context, key string) ([]byte, error) {
	entry, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil || !fresh(entry.WrittenAt, c.now(), c.maxStale) {
		metrics.CacheLookupsTotal.WithLabelValues(layerStore, metrics.CacheStaleMiss).Inc()
		return nil, domain.ErrCacheMiss
	}

	metrics.CacheLookupsTotal.WithLabelValues(layerStore, metrics.CacheStale).Inc()
	return entry.Payload, nil
}

// Set upserts a value stamped with the current time
func (c *StoreCache) Set(ctx context.Context, key string, value []byte) error {
	entry := cacheEntry{
		CacheKey:  key,
		Payload:   value,
		WrittenAt: c.now().UTC(),
	}

	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "written_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

// Prune deletes entries past the staleness horizon and returns how many
// were removed.
func (c *StoreCache) Prune(ctx context.Context) (int64, error) {
	cutoff := c.now().UTC().Add(-c.maxStale)
	res := c.db.WithContext(ctx).Where("written_at < ?", cutoff).Delete(&cacheEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (c *StoreCache) load(ctx context.Context, key string) (*cacheEntry, error) {
	var entry cacheEntry
	err := c.db.WithContext(ctx).Where("cache_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}
	return &entry, nil
}
