package cache

import (
	"testing"
	"time"

	"github.com/use-agent/gleaner/models"
)

func testResult(n int) *models.CrawlResult {
	return &models.CrawlResult{Success: true, TotalItems: n}
}

func testKey(t *testing.T, url string) string {
	t.Helper()
	k := Key(&models.CrawlConfig{
		StartURL:   url,
		Extractors: []models.ExtractorRule{{FieldName: "title", Selector: "h1"}},
	})
	if k == "" {
		t.Fatal("empty cache key")
	}
	return k
}

func TestKeyIsStablePerConfig(t *testing.T) {
	a := testKey(t, "https://example.com/a")
	if b := testKey(t, "https://example.com/a"); b != a {
		t.Error("identical configurations must share a key")
	}
	if b := testKey(t, "https://example.com/b"); b == a {
		t.Error("different configurations must not share a key")
	}
}

func TestGetSet(t *testing.T) {
	c := New(10)
	key := testKey(t, "https://example.com/")

	if _, ok := c.Get(key, 60_000); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	c.Set(key, testResult(3))

	got, ok := c.Get(key, 60_000)
	if !ok {
		t.Fatal("expected a hit")
	}
	if got.TotalItems != 3 {
		t.Errorf("total_items = %d, want 3", got.TotalItems)
	}

	// maxAgeMs <= 0 disables lookup entirely.
	if _, ok := c.Get(key, 0); ok {
		t.Error("maxAgeMs=0 must miss")
	}
}

func TestGetRespectsMaxAge(t *testing.T) {
	c := New(10)
	key := testKey(t, "https://example.com/")
	c.Set(key, testResult(1))

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get(key, 5); ok {
		t.Error("entry older than maxAgeMs must miss")
	}
	if _, ok := c.Get(key, 60_000); !ok {
		t.Error("entry younger than maxAgeMs must hit")
	}
}

func TestSetEvictsOldestAtCapacity(t *testing.T) {
	c := New(2)

	k1 := testKey(t, "https://example.com/1")
	c.Set(k1, testResult(1))
	time.Sleep(5 * time.Millisecond)
	k2 := testKey(t, "https://example.com/2")
	c.Set(k2, testResult(2))
	time.Sleep(5 * time.Millisecond)
	k3 := testKey(t, "https://example.com/3")
	c.Set(k3, testResult(3))

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get(k1, 60_000); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get(k3, 60_000); !ok {
		t.Error("newest entry should be present")
	}
}
