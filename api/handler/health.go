package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports degraded when the async crawl slots are saturated.
func Health(cfg *config.Config, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := ActiveCrawls()

		status := "healthy"
		if cfg.Crawl.MaxAsyncJobs > 0 && active >= cfg.Crawl.MaxAsyncJobs {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			ActiveCrawls: active,
			Version:      "0.1.0",
		})
	}
}
