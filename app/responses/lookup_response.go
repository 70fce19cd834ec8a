package responses

import (
	"github.com/address-lookup/app/models"
	"github.com/address-lookup/app/services"
)

// LookupResponse wraps a single lookup result.
type LookupResponse struct {
	Result           *models.LookupResult `json:"result"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}

// BatchLookupResponse wraps a batch of results, index-aligned with the
// request.
type BatchLookupResponse struct {
	Results          []*models.LookupResult `json:"results"`
	Total            int                    `json:"total"`
	Resolved         int                    `json:"resolved"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// StatsResponse reports service and cache counters.
type StatsResponse struct {
	Lookup services.LookupStats `json:"lookup"`
	Cache  *services.CacheStats `json:"cache,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status         string `json:"status"`
	IndexedRecords int    `json:"indexed_records"`
	Uptime         string `json:"uptime"`
}

// ErrorResponse carries a machine-readable error code plus a message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
