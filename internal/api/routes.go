package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dromero86/macrovista/internal/api/handlers"
	"github.com/dromero86/macrovista/internal/database"
	"github.com/dromero86/macrovista/internal/services"
)

type HealthResponse struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Version   string                  `json:"version"`
	Services  Services                `json:"services"`
	Resources *services.ResourceStats `json:"resources,omitempty"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// SetupRoutes wires the read-only query surface over the signal engine.
func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, monitor *services.PerformanceMonitor, signals *handlers.SignalsHandler) {
	router.GET("/health", healthCheck(db, redis, monitor))

	v1 := router.Group("/api/v1")
	{
		sig := v1.Group("/signals")
		{
			sig.GET("/correlations", signals.GetCorrelations)
			sig.GET("/bias", signals.GetTradingBias)
			sig.GET("/reliability", signals.GetReliability)
			sig.GET("/narrative", signals.GetNarrative)
			sig.GET("/sources", signals.GetSourceBreakers)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient, monitor *services.PerformanceMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		if monitor != nil {
			response.Resources = monitor.Stats(c.Request.Context())
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
