package services

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/matcher"
	"github.com/address-lookup/internal/normalizer"
	"github.com/address-lookup/internal/parser"
)

// AddressLookup orchestrates parser and matcher into the single public
// lookup operation: free-form address text in, LookupResult out. It holds
// no per-call state beyond the shared immutable index underneath the
// matcher, so Lookup may be called concurrently.
type AddressLookup struct {
	parser  *parser.AddressParser
	matcher *matcher.AddressMatcher
	norm    *normalizer.TextNormalizer
	cache   ResultCache // nil when caching is disabled
	logger  *zap.Logger

	threshold     float64
	maxInputBytes int

	startTime time.Time
	lookups   atomic.Int64
	resolved  atomic.Int64
}

// LookupStats is the service-level counter snapshot.
type LookupStats struct {
	UptimeSeconds  int64  `json:"uptime_seconds"`
	TotalLookups   int64  `json:"total_lookups"`
	TotalResolved  int64  `json:"total_resolved"`
	ModelFailures  int64  `json:"model_failures"`
	ModelTimeouts  int64  `json:"model_timeouts"`
	IndexedRecords int    `json:"indexed_records"`
}

// NewAddressLookup wires the façade. cache may be nil.
func NewAddressLookup(p *parser.AddressParser, m *matcher.AddressMatcher, tn *normalizer.TextNormalizer, cache ResultCache, threshold float64, maxInputBytes int, logger *zap.Logger) *AddressLookup {
	return &AddressLookup{
		parser:        p,
		matcher:       m,
		norm:          tn,
		cache:         cache,
		logger:        logger,
		threshold:     threshold,
		maxInputBytes: maxInputBytes,
		startTime:     time.Now(),
	}
}

// Lookup resolves one raw address string. The only error it returns is
// ErrInputTooLarge, raised at the boundary before any parsing; every other
// outcome, including "nothing matched", is a typed LookupResult.
func (al *AddressLookup) Lookup(ctx context.Context, raw string) (*models.LookupResult, error) {
	if len(raw) > al.maxInputBytes {
		return nil, models.ErrInputTooLarge
	}
	al.lookups.Add(1)
	start := time.Now()

	if strings.TrimSpace(raw) == "" {
		return &models.LookupResult{
			Raw:    raw,
			Status: models.StatusUnresolved,
			Reason: models.ReasonUnparseableInput,
		}, nil
	}

	key := al.norm.Normalize(raw)
	if al.cache != nil && key != "" {
		if cached, found, err := al.cache.Get(ctx, key); err == nil && found {
			al.logger.Debug("Lookup served from cache", zap.String("key", key))
			return cached, nil
		}
	}

	cand := al.parser.Parse(ctx, raw)
	result := al.resolve(&cand)

	if al.cache != nil && key != "" {
		if err := al.cache.Set(ctx, key, result); err != nil {
			al.logger.Warn("Caching lookup result failed", zap.Error(err))
		}
	}

	al.logger.Debug("Lookup completed",
		zap.String("raw", raw),
		zap.String("status", string(result.Status)),
		zap.Float64("score", result.Score),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func (al *AddressLookup) resolve(cand *models.AddressCandidate) *models.LookupResult {
	if cand.IsEmpty() {
		return &models.LookupResult{
			Raw:    cand.RawText,
			Status: models.StatusUnresolved,
			Reason: models.ReasonUnparseableInput,
		}
	}

	matches := al.matcher.Match(*cand)
	if len(matches) == 0 {
		return &models.LookupResult{
			Raw:    cand.RawText,
			Status: models.StatusUnresolved,
			Reason: models.ReasonNoMatchFound,
		}
	}

	top := matches[0]
	if top.Score >= al.threshold {
		al.resolved.Add(1)
		return &models.LookupResult{
			Raw:           cand.RawText,
			Status:        models.StatusResolved,
			Record:        top.Record,
			Score:         top.Score,
			MatchedFields: matcher.MatchedFields(top.Breakdown),
		}
	}

	return &models.LookupResult{
		Raw:            cand.RawText,
		Status:         models.StatusUnresolved,
		Reason:         models.ReasonAmbiguousLowConfidence,
		BestCandidates: matches,
	}
}

// LookupBatch resolves many inputs with per-item isolation: one bad input
// never fails the batch. Oversized items come back unresolved with the
// unparseable reason instead of aborting their neighbors.
func (al *AddressLookup) LookupBatch(ctx context.Context, raws []string) []*models.LookupResult {
	results := make([]*models.LookupResult, len(raws))
	for i, raw := range raws {
		result, err := al.Lookup(ctx, raw)
		if err != nil {
			al.logger.Warn("Batch item rejected",
				zap.Int("index", i), zap.Error(err))
			result = &models.LookupResult{
				Raw:    raw,
				Status: models.StatusUnresolved,
				Reason: models.ReasonUnparseableInput,
			}
		}
		results[i] = result
	}
	return results
}

// Stats snapshots the service counters.
func (al *AddressLookup) Stats(indexedRecords int) LookupStats {
	failures, timeouts := al.parser.ModelErrorCounts()
	return LookupStats{
		UptimeSeconds:  int64(time.Since(al.startTime).Seconds()),
		TotalLookups:   al.lookups.Load(),
		TotalResolved:  al.resolved.Load(),
		ModelFailures:  failures,
		ModelTimeouts:  timeouts,
		IndexedRecords: indexedRecords,
	}
}
