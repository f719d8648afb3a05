package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gleaner/config"
)

func protectedRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHeaderStyles(t *testing.T) {
	r := protectedRouter(Auth([]string{"key-a", "key-b"}))

	if w := get(r, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", w.Code)
	}
	if w := get(r, map[string]string{"X-API-Key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad key: status = %d, want 401", w.Code)
	}
	if w := get(r, map[string]string{"X-API-Key": "key-a"}); w.Code != http.StatusOK {
		t.Errorf("X-API-Key: status = %d, want 200", w.Code)
	}
	if w := get(r, map[string]string{"Authorization": "Bearer key-b"}); w.Code != http.StatusOK {
		t.Errorf("Bearer: status = %d, want 200", w.Code)
	}
}

func TestAuthOpenAccessWithoutKeys(t *testing.T) {
	r := protectedRouter(Auth(nil))
	if w := get(r, nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when no keys configured", w.Code)
	}
}

func TestRateLimitBurstExhaustion(t *testing.T) {
	r := protectedRouter(RateLimit(config.RateLimitConfig{
		RequestsPerSecond: 0.1,
		Burst:             2,
		IdleTTL:           time.Hour,
	}))

	for i := 0; i < 2; i++ {
		if w := get(r, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 within burst", i+1, w.Code)
		}
	}
	if w := get(r, nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 once the burst is spent", w.Code)
	}
}

// Identities do not share buckets: exhausting one API key's burst leaves
// another key untouched.
func TestRateLimitPerIdentity(t *testing.T) {
	r := protectedRouter(
		Auth([]string{"key-a", "key-b"}),
		RateLimit(config.RateLimitConfig{
			RequestsPerSecond: 0.1,
			Burst:             1,
			IdleTTL:           time.Hour,
		}),
	)

	if w := get(r, map[string]string{"X-API-Key": "key-a"}); w.Code != http.StatusOK {
		t.Fatalf("key-a first request: status = %d", w.Code)
	}
	if w := get(r, map[string]string{"X-API-Key": "key-a"}); w.Code != http.StatusTooManyRequests {
		t.Errorf("key-a second request: status = %d, want 429", w.Code)
	}
	if w := get(r, map[string]string{"X-API-Key": "key-b"}); w.Code != http.StatusOK {
		t.Errorf("key-b: status = %d, want 200 on its own bucket", w.Code)
	}
}
