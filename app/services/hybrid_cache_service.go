package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
)

// HybridCacheService layers the in-process LRU (L1) over Redis (L2). L1
// misses fall through to L2; L2 hits are promoted back into L1 in the
// background.
type HybridCacheService struct {
	l1     *LRUCacheService
	l2     *RedisCacheService
	logger *zap.Logger
}

// NewHybridCacheService combines the two cache tiers.
func NewHybridCacheService(l1 *LRUCacheService, l2 *RedisCacheService, logger *zap.Logger) *HybridCacheService {
	return &HybridCacheService{l1: l1, l2: l2, logger: logger}
}

// Get implements ResultCache.
func (hcs *HybridCacheService) Get(ctx context.Context, key string) (*models.LookupResult, bool, error) {
	result, found, err := hcs.l1.Get(ctx, key)
	if err == nil && found {
		return result, true, nil
	}

	result, found, err = hcs.l2.Get(ctx, key)
	if err != nil {
		// A degraded L2 must not fail the lookup path.
		hcs.logger.Warn("L2 cache error, treating as miss", zap.Error(err))
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := hcs.l1.Set(bgCtx, key, result); err != nil {
			hcs.logger.Warn("L2->L1 promotion failed", zap.Error(err), zap.String("key", key))
		}
	}()

	return result, true, nil
}

// Set implements ResultCache, writing both tiers.
func (hcs *HybridCacheService) Set(ctx context.Context, key string, result *models.LookupResult) error {
	if err := hcs.l1.Set(ctx, key, result); err != nil {
		return err
	}
	if err := hcs.l2.Set(ctx, key, result); err != nil {
		hcs.logger.Warn("L2 cache set failed", zap.Error(err), zap.String("key", key))
	}
	return nil
}

// Clear implements ResultCache.
func (hcs *HybridCacheService) Clear(ctx context.Context) error {
	if err := hcs.l1.Clear(ctx); err != nil {
		return err
	}
	return hcs.l2.Clear(ctx)
}

// GetStats implements ResultCache, reporting the L1 view plus L2 item
// count.
func (hcs *HybridCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	stats, err := hcs.l1.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	if l2Stats, err := hcs.l2.GetStats(ctx); err == nil {
		stats.TotalItems += l2Stats.TotalItems
	}
	return stats, nil
}

// Close implements ResultCache.
func (hcs *HybridCacheService) Close() error {
	if err := hcs.l1.Close(); err != nil {
		return err
	}
	return hcs.l2.Close()
}
