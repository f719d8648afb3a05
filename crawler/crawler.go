// Package crawler executes a validated CrawlConfiguration: it owns the
// rendering backend for the duration of one crawl, walks list pages into
// detail pages across paginated result sets, and folds per-item errors into
// the final result instead of aborting.
package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/engine"
	"github.com/use-agent/gleaner/models"
)

// crawl carries the state of one invocation. Pages are visited strictly one
// at a time; nothing here is shared across invocations.
type crawl struct {
	cfg     *models.CrawlConfig
	backend engine.Backend
	content *contentExtractor
}

// Run executes the configuration and returns the terminal result. The
// backend is acquired at the start and released on every exit path,
// including the fatal one. The caller bounds total time through ctx.
//
// Run assumes cfg has passed Validate and Defaults.
func Run(ctx context.Context, cfg *models.CrawlConfig, browserCfg config.BrowserConfig) *models.CrawlResult {
	result := &models.CrawlResult{
		Data:    []models.Record{},
		Errors:  []models.CrawlError{},
		Context: cfg.Context,
	}

	backend, err := engine.New(cfg.Engine, engine.Options{
		Wait:    cfg.Wait,
		Headers: cfg.Headers,
		Stealth: cfg.Stealth,
		Browser: engine.BrowserOptions{
			Headless:  browserCfg.Headless,
			NoSandbox: browserCfg.NoSandbox,
			Bin:       browserCfg.BrowserBin,
			Proxy:     browserCfg.DefaultProxy,
		},
	})
	if err != nil {
		result.Errors = append(result.Errors, models.CrawlError{
			Source:  cfg.StartURL,
			Message: err.Error(),
		})
		return result
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Warn("backend release failed", "engine", backend.Name(), "error", closeErr)
		}
	}()

	c := &crawl{
		cfg:     cfg,
		backend: backend,
		content: newContentExtractor(cfg.Content),
	}

	started := time.Now()
	slog.Info("crawl started", "url", cfg.StartURL, "engine", cfg.Engine)
	c.run(ctx, result)
	result.TotalItems = len(result.Data)
	slog.Info("crawl finished",
		"url", cfg.StartURL,
		"success", result.Success,
		"items", result.TotalItems,
		"errors", len(result.Errors),
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return result
}

// run drives the pagination loop: process a list page, resolve the next
// link, repeat until pagination is exhausted or max_pages is reached.
func (c *crawl) run(ctx context.Context, result *models.CrawlResult) {
	pageURL := c.cfg.StartURL
	var page engine.Page
	visited := 0

	for {
		var err error
		if page == nil {
			page, err = c.backend.Open(ctx, pageURL)
		} else {
			page, err = page.Navigate(ctx, pageURL)
		}
		if err != nil {
			result.Errors = append(result.Errors, models.CrawlError{
				Source:  pageURL,
				Message: err.Error(),
			})
			if visited == 0 {
				// The initial list page failed to load: fatal.
				return
			}
			// A later list page failed; everything collected so far stands.
			slog.Warn("list page load failed, stopping pagination",
				"url", pageURL, "error", err)
			result.Success = true
			return
		}
		visited++
		slog.Info("list page loaded", "url", pageURL, "page", visited)

		records, errs := c.collectListPage(ctx, page)
		result.Data = append(result.Data, records...)
		result.Errors = append(result.Errors, errs...)

		if c.cfg.Pagination == nil || !c.cfg.Pagination.Enabled {
			_ = page.Close()
			break
		}

		next := c.nextPageURL(page)
		switch {
		case next == "" || next == pageURL:
			// Pagination exhausted.
			_ = page.Close()
		case c.cfg.Pagination.MaxPages > 0 && visited >= c.cfg.Pagination.MaxPages:
			// Page budget spent; surface the unvisited URL so the caller
			// can resume in a later invocation.
			result.NextPageURL = &next
			_ = page.Close()
		default:
			pageURL = next
			c.pause(ctx)
			continue
		}
		break
	}

	result.Success = true
}

// nextPageURL resolves the pagination link against the just-processed list
// page. An unresolvable link means pagination stops, never an error.
func (c *crawl) nextPageURL(page engine.Page) string {
	p := c.cfg.Pagination
	link, err := page.QueryOne(engine.Selector{Query: p.NextPageSelector})
	if err != nil || link == nil {
		return ""
	}
	raw, ok := link.Read(p.NextPageAttribute)
	if !ok || raw == "" {
		return ""
	}
	return resolveURL(page.URL(), raw)
}

// pause applies the configured inter-request delay, honouring cancellation.
func (c *crawl) pause(ctx context.Context) {
	d := c.cfg.Wait.DelayDuration()
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
