package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gleaner/models"
)

// Validate returns a handler for POST /api/v1/validate: check a crawl
// configuration without executing it.
func Validate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg models.CrawlConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "malformed configuration: " + err.Error(),
				},
			})
			return
		}

		errs, warnings := cfg.Validate()
		if errs == nil {
			errs = []string{}
		}
		if warnings == nil {
			warnings = []string{}
		}
		c.JSON(http.StatusOK, models.ValidationResponse{
			Valid:    len(errs) == 0,
			Errors:   errs,
			Warnings: warnings,
		})
	}
}
