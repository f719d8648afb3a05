package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/models"
)

func asyncRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Crawl: config.CrawlLimitsConfig{
			MaxCrawlTime: 30 * time.Second,
			MaxAsyncJobs: 2,
		},
	}
	r := gin.New()
	r.POST("/crawl/async", CrawlAsync(cfg))
	r.GET("/crawl/:id", GetCrawl())
	return r
}

// Polling a job while its crawl goroutine completes must be safe: the store
// only ever holds immutable job snapshots, so the poller sees either the
// processing value or the finished one.
func TestAsyncCrawlPollWhileRunning(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Keep the crawl in flight long enough for polls to overlap it.
		time.Sleep(150 * time.Millisecond)
		fmt.Fprint(w, `<html><body><h1>Async</h1></body></html>`)
	}))
	defer page.Close()

	r := asyncRouter()
	w := postJSON(t, r, "/crawl/async", fmt.Sprintf(`{
		"config": {
			"start_url": %q,
			"extractors": [{"field_name": "title", "selector": "h1"}]
		}
	}`, page.URL))
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var submitted models.AsyncCrawlResponse
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatal(err)
	}
	if submitted.ID == "" || submitted.Status != "processing" {
		t.Fatalf("submit response = %+v", submitted)
	}

	var status models.CrawlStatusResponse
	deadline := time.Now().Add(10 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/crawl/"+submitted.ID, nil)
		poll := httptest.NewRecorder()
		r.ServeHTTP(poll, req)
		if poll.Code != http.StatusOK {
			t.Fatalf("poll status = %d: %s", poll.Code, poll.Body.String())
		}
		if err := json.Unmarshal(poll.Body.Bytes(), &status); err != nil {
			t.Fatal(err)
		}
		if status.Status != "processing" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never left processing")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status.Status != "completed" {
		t.Fatalf("status = %q, want completed (result: %+v)", status.Status, status.Result)
	}
	if status.Result == nil || status.Result.TotalItems != 1 {
		t.Fatalf("result = %+v, want one extracted record", status.Result)
	}
	if status.Result.Data[0]["title"] != "Async" {
		t.Errorf("title = %v, want Async", status.Result.Data[0]["title"])
	}
}

func TestGetCrawlUnknownJob(t *testing.T) {
	r := asyncRouter()
	req := httptest.NewRequest(http.MethodGet, "/crawl/crawl-doesnotexist", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
