package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/address-lookup/app/config"
	"github.com/address-lookup/app/controllers"
	"github.com/address-lookup/app/models"
	"github.com/address-lookup/app/services"
	"github.com/address-lookup/internal/external"
	"github.com/address-lookup/internal/matcher"
	"github.com/address-lookup/internal/normalizer"
	"github.com/address-lookup/internal/parser"
	"github.com/address-lookup/internal/refindex"
	"github.com/address-lookup/routes"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// 2. Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting Address Lookup Service",
		zap.String("ca_dataset", cfg.Datasets.CanadianPostalCodesPath),
		zap.String("us_dataset", cfg.Datasets.USZipCodesPath),
		zap.String("model", cfg.Model.Name))

	// 3. Text normalizer (shared by index, parser and matcher)
	textNormalizer, err := normalizer.NewTextNormalizer()
	if err != nil {
		logger.Fatal("Failed to initialize normalizer", zap.Error(err))
	}

	// 4. Load both reference datasets and build the index. Construction
	// errors halt startup: no partial index is ever exposed.
	caRecords, err := refindex.LoadCSV(cfg.Datasets.CanadianPostalCodesPath, models.CountryCA, logger)
	if err != nil {
		logger.Fatal("Failed to load Canadian dataset", zap.Error(err))
	}
	usRecords, err := refindex.LoadCSV(cfg.Datasets.USZipCodesPath, models.CountryUS, logger)
	if err != nil {
		logger.Fatal("Failed to load US dataset", zap.Error(err))
	}
	index := refindex.NewIndex(append(caRecords, usRecords...), textNormalizer, logger)

	// 5. Extraction fallback backend. Registered here, never invoked until
	// the first lookup that needs it.
	var extractor parser.TextFieldExtractor
	switch cfg.Model.Backend {
	case "libpostal":
		lp, err := external.NewLibpostalExtractor()
		if err != nil {
			logger.Fatal("Failed to initialize libpostal backend", zap.Error(err))
		}
		extractor = parser.NewDedupingExtractor(lp)
	default:
		if cfg.Model.Name != "" {
			llama := external.NewLlamaExtractor(cfg.Model.Host, cfg.Model.Name, cfg.Model.Timeout, logger)
			extractor = parser.NewDedupingExtractor(llama)
		}
	}

	// 6. Parser and matcher
	addressParser := parser.NewAddressParser(textNormalizer, extractor, parser.Config{
		MinRuleFields: cfg.Lookup.MinRuleFields,
		ModelTimeout:  cfg.Model.Timeout,
	}, logger)

	addressMatcher := matcher.NewAddressMatcher(index, textNormalizer, matcher.Config{
		Weights: matcher.Weights{
			Postal:                 cfg.Scoring.Postal,
			City:                   cfg.Scoring.City,
			Street:                 cfg.Scoring.Street,
			Region:                 cfg.Scoring.Region,
			CountryMismatchPenalty: cfg.Scoring.CountryMismatch,
		},
		TopK:            cfg.Lookup.TopK,
		MaxEditDistance: cfg.Lookup.MaxEditDistance,
	}, logger)

	// 7. Result cache (L1 LRU, optionally layered over Redis)
	var cache services.ResultCache
	if cfg.Cache.Enabled {
		l1, err := services.NewLRUCacheService(cfg.Cache.L1Size)
		if err != nil {
			logger.Fatal("Failed to initialize L1 cache", zap.Error(err))
		}
		cache = l1
		if cfg.Cache.RedisURL != "" {
			l2, err := services.NewRedisCacheService(cfg.Cache.RedisURL, cfg.Cache.TTL, logger)
			if err != nil {
				logger.Warn("Redis unavailable, running with L1 cache only", zap.Error(err))
			} else {
				cache = services.NewHybridCacheService(l1, l2, logger)
			}
		}
		defer cache.Close()
	}

	// 8. Façade and HTTP surface
	addressLookup := services.NewAddressLookup(
		addressParser, addressMatcher, textNormalizer, cache,
		cfg.Lookup.AcceptanceThreshold, cfg.Lookup.MaxInputBytes, logger)

	lookupController := controllers.NewLookupController(addressLookup, cache, index.Len(), logger)

	// gin.Default already carries Logger and Recovery.
	router := gin.Default()
	routes.SetupRoutes(router, lookupController)

	logger.Info("Address Lookup Service listening", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
