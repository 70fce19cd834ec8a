package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/app/requests"
	"github.com/address-lookup/app/responses"
	"github.com/address-lookup/app/services"
)

// LookupController exposes the address lookup engine over HTTP.
type LookupController struct {
	lookup         *services.AddressLookup
	cache          services.ResultCache // nil when caching disabled
	indexedRecords int
	startTime      time.Time
	logger         *zap.Logger
}

// NewLookupController wires the controller.
func NewLookupController(lookup *services.AddressLookup, cache services.ResultCache, indexedRecords int, logger *zap.Logger) *LookupController {
	return &LookupController{
		lookup:         lookup,
		cache:          cache,
		indexedRecords: indexedRecords,
		startTime:      time.Now(),
		logger:         logger,
	}
}

// Lookup handles POST /api/v1/lookup.
func (lc *LookupController) Lookup(c *gin.Context) {
	var req requests.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	start := time.Now()
	result, err := lc.lookup.Lookup(c.Request.Context(), req.Address)
	if err != nil {
		if errors.Is(err, models.ErrInputTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, responses.ErrorResponse{
				Error:   "INPUT_TOO_LARGE",
				Message: err.Error(),
			})
			return
		}
		lc.logger.Error("Lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, responses.ErrorResponse{
			Error:   "LOOKUP_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, responses.LookupResponse{
		Result:           result,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})
}

// BatchLookup handles POST /api/v1/lookup/batch.
func (lc *LookupController) BatchLookup(c *gin.Context) {
	var req requests.BatchLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	start := time.Now()
	results := lc.lookup.LookupBatch(c.Request.Context(), req.Addresses)

	resolved := 0
	for _, r := range results {
		if r.Resolved() {
			resolved++
		}
	}

	c.JSON(http.StatusOK, responses.BatchLookupResponse{
		Results:          results,
		Total:            len(results),
		Resolved:         resolved,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})
}

// Stats handles GET /api/v1/stats.
func (lc *LookupController) Stats(c *gin.Context) {
	resp := responses.StatsResponse{
		Lookup: lc.lookup.Stats(lc.indexedRecords),
	}
	if lc.cache != nil {
		if stats, err := lc.cache.GetStats(c.Request.Context()); err == nil {
			resp.Cache = stats
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Health handles GET /health.
func (lc *LookupController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, responses.HealthResponse{
		Status:         "ok",
		IndexedRecords: lc.indexedRecords,
		Uptime:         time.Since(lc.startTime).Round(time.Second).String(),
	})
}
