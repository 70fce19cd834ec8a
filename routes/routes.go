package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/address-lookup/app/controllers"
)

// SetupRoutes registers all HTTP routes on the router.
func SetupRoutes(router *gin.Engine, lookup *controllers.LookupController) {
	router.GET("/health", lookup.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/lookup", lookup.Lookup)
		api.POST("/lookup/batch", lookup.BatchLookup)
		api.GET("/stats", lookup.Stats)
	}
}
