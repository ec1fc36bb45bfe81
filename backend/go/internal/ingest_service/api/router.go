package api

import (
	"RepoChat/backend/go/pkg/circuitbreaker"
	"RepoChat/backend/go/pkg/httpmiddleware"
	"RepoChat/backend/go/pkg/logger"
	"RepoChat/backend/go/pkg/ratelimiter"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all the routes for the ingestion service.
// submitLimiter throttles run submissions; breaker, when non-nil, guards the
// store-backed routes.
func RegisterRoutes(router *gin.Engine, api *API, submitLimiter ratelimiter.RateLimiter, breaker circuitbreaker.CircuitBreaker) {
	router.GET("/healthz", api.HealthHandler)

	// All routes will be under /api/v1
	v1 := router.Group("/api/v1")
	if breaker != nil {
		v1.Use(httpmiddleware.CircuitBreak(breaker))
	}

	ingestions := v1.Group("/ingestions")
	{
		ingestions.POST("", httpmiddleware.RateLimit(submitLimiter), api.SubmitIngestionHandler)
		ingestions.GET("", api.ListIngestionsHandler)
		ingestions.GET("/:id", api.GetIngestionHandler)
	}

	// WebSocket route
	router.GET("/ws/ingestions/:id", api.WatchIngestionHandler)
}

// NewRouter creates a gin engine with recovery and access logging and the
// ingestion routes registered.
func NewRouter(api *API, log *logger.Logger, submitLimiter ratelimiter.RateLimiter, breaker circuitbreaker.CircuitBreaker) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), httpmiddleware.AccessLog(log))
	RegisterRoutes(router, api, submitLimiter, breaker)
	return router
}
