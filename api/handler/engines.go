package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gleaner/engine"
	"github.com/use-agent/gleaner/models"
)

// Engines returns a handler for GET /api/v1/engines: the rendering backends
// this deployment supports and the default.
func Engines() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.EnginesResponse{
			Engines: engine.Supported(),
			Default: models.EngineStatic,
		})
	}
}
