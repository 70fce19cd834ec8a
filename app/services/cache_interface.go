package services

import (
	"context"

	"github.com/address-lookup/app/models"
)

// CacheStats reports cache effectiveness.
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ResultCache stores lookup results keyed by normalized input text.
// Implementations must be safe for concurrent use.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.LookupResult, bool, error)
	Set(ctx context.Context, key string, result *models.LookupResult) error
	Clear(ctx context.Context) error
	GetStats(ctx context.Context) (*CacheStats, error)
	Close() error
}
