package models

// CrawlRequest is the payload for POST /api/v1/crawl and /api/v1/crawl/async.
type CrawlRequest struct {
	// Config is the declarative crawl configuration.
	Config CrawlConfig `json:"config"`

	// MaxCacheAgeMs serves a cached result for an identical configuration
	// when the cached entry is younger than this. 0 disables cache lookup.
	// Only honoured by the synchronous endpoint.
	MaxCacheAgeMs int `json:"max_cache_age_ms,omitempty"`

	// WebhookURL receives a signed completion event for async crawls.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body (HMAC-SHA256) when non-empty.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// CrawlResponse is the response for POST /api/v1/crawl.
type CrawlResponse struct {
	Result *CrawlResult `json:"result,omitempty"`

	// CacheStatus is "hit" or "miss" when cache lookup was requested.
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when the request itself was rejected.
	Error *ErrorDetail `json:"error,omitempty"`
}

// AsyncCrawlResponse is the immediate response for POST /api/v1/crawl/async.
type AsyncCrawlResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// CrawlStatusResponse is the response for GET /api/v1/crawl/:id.
type CrawlStatusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Result *CrawlResult `json:"result,omitempty"`
}

// CrawlJob tracks one async crawl operation. A job value is immutable once
// published to the job store; completion publishes a new snapshot in its
// place rather than writing these fields.
type CrawlJob struct {
	ID            string
	Status        string // "processing", "completed", "failed"
	Result        *CrawlResult
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string
}

// ValidationResponse is the response for POST /api/v1/validate.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// EnginesResponse is the response for GET /api/v1/engines.
type EnginesResponse struct {
	Engines []string `json:"engines"`
	Default string   `json:"default"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string `json:"status"` // "healthy" or "degraded"
	Uptime       string `json:"uptime"`
	ActiveCrawls int    `json:"active_crawls"`
	Version      string `json:"version"`
}
