package services

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/address-lookup/app/models"
)

// LRUCacheService is the in-process L1 result cache, size-bounded with LRU
// eviction.
type LRUCacheService struct {
	cache *lru.Cache[string, *models.LookupResult]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLRUCacheService creates a bounded in-memory cache.
func NewLRUCacheService(size int) (*LRUCacheService, error) {
	cache, err := lru.New[string, *models.LookupResult](size)
	if err != nil {
		return nil, err
	}
	return &LRUCacheService{cache: cache}, nil
}

// Get implements ResultCache.
func (cs *LRUCacheService) Get(_ context.Context, key string) (*models.LookupResult, bool, error) {
	if result, ok := cs.cache.Get(key); ok {
		cs.hits.Add(1)
		return result, true, nil
	}
	cs.misses.Add(1)
	return nil, false, nil
}

// Set implements ResultCache.
func (cs *LRUCacheService) Set(_ context.Context, key string, result *models.LookupResult) error {
	cs.cache.Add(key, result)
	return nil
}

// Clear implements ResultCache.
func (cs *LRUCacheService) Clear(_ context.Context) error {
	cs.cache.Purge()
	return nil
}

// GetStats implements ResultCache.
func (cs *LRUCacheService) GetStats(_ context.Context) (*CacheStats, error) {
	hits, misses := cs.hits.Load(), cs.misses.Load()
	stats := &CacheStats{
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: int64(cs.cache.Len()),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats, nil
}

// Close implements ResultCache.
func (cs *LRUCacheService) Close() error {
	return nil
}
