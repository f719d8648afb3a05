package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/use-agent/gleaner/engine"
	"github.com/use-agent/gleaner/models"
)

// collectListPage walks one list page: enumerate items, visit each detail
// page (or extract from the item element in place), and return the records
// and errors for this page. Item failures never propagate upward as errors;
// they are folded into the returned slice.
func (c *crawl) collectListPage(ctx context.Context, page engine.Page) ([]models.Record, []models.CrawlError) {
	if c.cfg.Navigation == nil {
		// The page itself is the sole extraction target.
		record, errs := c.extractRecord(page, page.URL())
		return []models.Record{record}, errs
	}

	nav := c.cfg.Navigation
	items, err := page.QueryAll(engine.Selector{
		Query: nav.ListItemsSelector,
		Wait:  true,
	})
	if err != nil {
		return nil, []models.CrawlError{{
			Source:  page.URL(),
			Message: fmt.Sprintf("list items: %v", err),
		}}
	}
	slog.Info("items enumerated", "url", page.URL(), "count", len(items))

	var records []models.Record
	var errs []models.CrawlError

	for i, item := range items {
		if i > 0 {
			// Deliberate pacing between detail visits, applied even when
			// the previous item errored.
			c.pause(ctx)
		}

		if nav.DetailLinkSelector == "" {
			// No detail navigation: extract directly from the item element.
			record, itemErrs := c.extractElement(item, itemSource(page.URL(), i))
			records = append(records, record)
			errs = append(errs, itemErrs...)
			continue
		}

		detailURL, resolveErr := c.detailURL(item, page.URL())
		if resolveErr != nil {
			errs = append(errs, models.CrawlError{
				Source:  itemSource(page.URL(), i),
				Message: resolveErr.Error(),
			})
			continue
		}

		record, itemErrs := c.visitDetail(ctx, detailURL)
		if record != nil {
			records = append(records, record)
		}
		errs = append(errs, itemErrs...)
	}

	return records, errs
}

// detailURL resolves the detail page URL from one list item, relative links
// resolved against the list page's URL.
func (c *crawl) detailURL(item engine.Element, base string) (string, error) {
	nav := c.cfg.Navigation
	link, err := item.QueryOne(engine.Selector{Query: nav.DetailLinkSelector})
	if err != nil {
		return "", fmt.Errorf("detail link: %w", err)
	}
	if link == nil {
		return "", fmt.Errorf("detail link %q matched nothing", nav.DetailLinkSelector)
	}

	raw, ok := link.Read(nav.DetailLinkAttribute)
	if !ok || raw == "" {
		return "", fmt.Errorf("detail link has no %q attribute", nav.DetailLinkAttribute)
	}

	resolved := resolveURL(base, raw)
	if resolved == "" {
		return "", fmt.Errorf("detail link %q is not a usable URL", raw)
	}
	return resolved, nil
}

// visitDetail opens one detail page, extracts a record from it, and releases
// the page. A load failure skips the item; extraction failures still yield a
// partial record.
func (c *crawl) visitDetail(ctx context.Context, detailURL string) (models.Record, []models.CrawlError) {
	page, err := c.backend.Open(ctx, detailURL)
	if err != nil {
		return nil, []models.CrawlError{{
			Source:  detailURL,
			Message: err.Error(),
		}}
	}
	defer page.Close()

	return c.extractRecord(page, detailURL)
}

// resolveURL resolves a possibly relative link against a base URL and
// rejects anything that is not http(s).
func resolveURL(base, link string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	linkURL, err := url.Parse(link)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(linkURL)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// itemSource tags errors for items that have no resolvable URL of their own.
func itemSource(listURL string, index int) string {
	return fmt.Sprintf("%s#item-%d", listURL, index)
}
