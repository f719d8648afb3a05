package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Crawl     CrawlLimitsConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Chrome sessions launched for browser-engine
// crawls. One session is launched per crawl and released when it ends.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL used by both engines.
	DefaultProxy string
}

// CrawlLimitsConfig bounds individual crawl invocations.
type CrawlLimitsConfig struct {
	// MaxCrawlTime is the external deadline wrapping one whole crawl.
	MaxCrawlTime time.Duration // default: 300s

	// MaxAsyncJobs caps concurrently running async crawls.
	MaxAsyncJobs int // default: 4
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10

	// IdleTTL is how long an identity's limiter survives without traffic
	// before it is evicted.
	IdleTTL time.Duration // default: 1h
}

// CacheConfig controls the sync-crawl result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 500
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from the environment with sane defaults.
// A .env file in the working directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("GLEANER_HOST", "0.0.0.0"),
			Port: envIntOr("GLEANER_PORT", 8080),
			Mode: envOr("GLEANER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("GLEANER_HEADLESS", true),
			NoSandbox:    envBoolOr("GLEANER_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("GLEANER_BROWSER_BIN"),
			DefaultProxy: os.Getenv("GLEANER_PROXY"),
		},
		Crawl: CrawlLimitsConfig{
			MaxCrawlTime: envDurationOr("GLEANER_MAX_CRAWL_TIME", 300*time.Second),
			MaxAsyncJobs: envIntOr("GLEANER_MAX_ASYNC_JOBS", 4),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("GLEANER_AUTH_ENABLED", false),
			APIKeys: envSliceOr("GLEANER_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("GLEANER_RATE_RPS", 5.0),
			Burst:             envIntOr("GLEANER_RATE_BURST", 10),
			IdleTTL:           envDurationOr("GLEANER_RATE_IDLE_TTL", time.Hour),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("GLEANER_CACHE_MAX_ENTRIES", 500),
		},
		Log: LogConfig{
			Level:  envOr("GLEANER_LOG_LEVEL", "info"),
			Format: envOr("GLEANER_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
