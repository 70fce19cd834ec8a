package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
)

// RedisCacheService is the shared L2 result cache, used when multiple
// service instances should agree on recently resolved inputs.
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService connects to Redis and verifies the connection.
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: "addr_lookup:",
		ttl:    ttl,
	}, nil
}

// Get implements ResultCache.
func (cs *RedisCacheService) Get(ctx context.Context, key string) (*models.LookupResult, bool, error) {
	val, err := cs.client.Get(ctx, cs.prefix+key).Result()
	if err == redis.Nil {
		cs.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		cs.logger.Error("Redis get failed", zap.Error(err), zap.String("key", key))
		return nil, false, err
	}

	var result models.LookupResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		cs.logger.Error("Unmarshalling cached result failed", zap.Error(err), zap.String("key", key))
		return nil, false, err
	}

	cs.hits.Add(1)
	return &result, true, nil
}

// Set implements ResultCache.
func (cs *RedisCacheService) Set(ctx context.Context, key string, result *models.LookupResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling result for cache: %w", err)
	}
	return cs.client.Set(ctx, cs.prefix+key, data, cs.ttl).Err()
}

// Clear implements ResultCache. Only keys under this service's prefix are
// removed.
func (cs *RedisCacheService) Clear(ctx context.Context) error {
	iter := cs.client.Scan(ctx, 0, cs.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := cs.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// GetStats implements ResultCache.
func (cs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	hits, misses := cs.hits.Load(), cs.misses.Load()
	stats := &CacheStats{
		TotalHits: hits,
		TotalMiss: misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	if size, err := cs.client.DBSize(ctx).Result(); err == nil {
		stats.TotalItems = size
	}
	return stats, nil
}

// Close implements ResultCache.
func (cs *RedisCacheService) Close() error {
	return cs.client.Close()
}
