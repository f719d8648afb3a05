package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gleaner/cache"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/crawler"
	"github.com/use-agent/gleaner/models"
	"github.com/use-agent/gleaner/webhook"
)

// activeCrawls counts crawls currently executing, for the health endpoint.
var activeCrawls atomic.Int32

// crawlStore holds all in-flight and completed async crawl jobs.
var crawlStore sync.Map

func init() {
	// Background goroutine to expire async jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			crawlStore.Range(func(key, value any) bool {
				job := value.(*models.CrawlJob)
				if job.CreatedAt < cutoff {
					crawlStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// ActiveCrawls reports how many crawls are executing right now.
func ActiveCrawls() int {
	return int(activeCrawls.Load())
}

// Crawl returns a handler for POST /api/v1/crawl: validate the
// configuration, execute the crawl synchronously under the server-side
// deadline, and return the full result.
func Crawl(cfg *config.Config, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindCrawlRequest(c)
		if !ok {
			return
		}

		key := cache.Key(&req.Config)
		if result, hit := cc.Get(key, req.MaxCacheAgeMs); hit {
			c.JSON(http.StatusOK, models.CrawlResponse{
				Result:      result,
				CacheStatus: "hit",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Crawl.MaxCrawlTime)
		defer cancel()

		activeCrawls.Add(1)
		result := crawler.Run(ctx, &req.Config, cfg.Browser)
		activeCrawls.Add(-1)

		if result.Success {
			cc.Set(key, result)
		}

		resp := models.CrawlResponse{Result: result}
		if req.MaxCacheAgeMs > 0 {
			resp.CacheStatus = "miss"
		}
		c.JSON(http.StatusOK, resp)
	}
}

// CrawlAsync returns a handler for POST /api/v1/crawl/async: enqueue the
// crawl, respond immediately with a job ID, and optionally deliver a signed
// webhook on completion.
func CrawlAsync(cfg *config.Config) gin.HandlerFunc {
	// Bounds concurrently running async crawls; each owns a backend.
	sem := make(chan struct{}, cfg.Crawl.MaxAsyncJobs)

	return func(c *gin.Context) {
		req, ok := bindCrawlRequest(c)
		if !ok {
			return
		}

		jobID := "crawl-" + randomID()
		job := &models.CrawlJob{
			ID:            jobID,
			Status:        "processing",
			CreatedAt:     time.Now().Unix(),
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		}
		crawlStore.Store(jobID, job)

		go runCrawlJob(cfg, job, req.Config, sem)

		c.JSON(http.StatusOK, models.AsyncCrawlResponse{
			ID:     jobID,
			Status: "processing",
		})
	}
}

// GetCrawl returns a handler for GET /api/v1/crawl/:id.
func GetCrawl() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := crawlStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "crawl job not found",
				},
			})
			return
		}

		job := val.(*models.CrawlJob)
		c.JSON(http.StatusOK, models.CrawlStatusResponse{
			ID:     job.ID,
			Status: job.Status,
			Result: job.Result,
		})
	}
}

// bindCrawlRequest parses and validates the request body, writing the
// error response itself when the request is rejected.
func bindCrawlRequest(c *gin.Context) (models.CrawlRequest, bool) {
	var req models.CrawlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.CrawlResponse{
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeInvalidInput,
				Message: "malformed request: " + err.Error(),
			},
		})
		return req, false
	}

	if errs, _ := req.Config.Validate(); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, models.CrawlResponse{
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeInvalidInput,
				Message: "invalid configuration: " + strings.Join(errs, "; "),
			},
		})
		return req, false
	}

	req.Config.Defaults()
	return req, true
}

// runCrawlJob executes one async crawl and fires the completion webhook.
//
// Job values in crawlStore are never mutated once published: completion
// replaces the stored entry with a finished snapshot, so status polls read
// either the processing value or the completed one without locking.
func runCrawlJob(cfg *config.Config, job *models.CrawlJob, crawlCfg models.CrawlConfig, sem chan struct{}) {
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Crawl.MaxCrawlTime)
	defer cancel()

	activeCrawls.Add(1)
	result := crawler.Run(ctx, &crawlCfg, cfg.Browser)
	activeCrawls.Add(-1)

	status := "completed"
	eventType := "crawl.completed"
	if !result.Success {
		status = "failed"
		eventType = "crawl.failed"
	}
	crawlStore.Store(job.ID, &models.CrawlJob{
		ID:            job.ID,
		Status:        status,
		Result:        result,
		CreatedAt:     job.CreatedAt,
		WebhookURL:    job.WebhookURL,
		WebhookSecret: job.WebhookSecret,
	})

	if job.WebhookURL != "" {
		webhook.DeliverAsync(job.WebhookURL, job.WebhookSecret, &webhook.Event{
			Type:      eventType,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      result,
		})
	}
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
