package crawler

import (
	"fmt"

	"github.com/use-agent/gleaner/engine"
	"github.com/use-agent/gleaner/models"
)

// extractRecord builds one record from a full page: the configured field
// rules plus, when enabled, readability content capture.
func (c *crawl) extractRecord(page engine.Page, source string) (models.Record, []models.CrawlError) {
	record, errs := c.extractElement(page, source)

	if c.content != nil {
		if err := c.content.capture(page, record); err != nil {
			errs = append(errs, models.CrawlError{
				Source:  source,
				Message: fmt.Sprintf("content capture: %v", err),
			})
		}
	}
	return record, errs
}

// extractElement applies the ordered extractor rules to one element (a page
// or a list item). A failing field is recorded as an error and set to nil;
// the record itself always survives (partial-record semantics).
func (c *crawl) extractElement(el engine.Element, source string) (models.Record, []models.CrawlError) {
	record := make(models.Record, len(c.cfg.Extractors))
	var errs []models.CrawlError

	for _, rule := range c.cfg.Extractors {
		value, err := c.resolveRule(el, rule)
		if err != nil {
			errs = append(errs, models.CrawlError{
				Source:  source,
				Message: fmt.Sprintf("field %q: %v", rule.FieldName, err),
			})
			record[rule.FieldName] = nil
			continue
		}
		record[rule.FieldName] = value
	}
	return record, errs
}

// resolveRule applies one selector rule. With multiple=false the first
// match's value is returned, or nil when nothing matches; with
// multiple=true every match's value is returned in document order, an empty
// slice (never nil) when nothing matches. Absence is data, not an error.
func (c *crawl) resolveRule(el engine.Element, rule models.ExtractorRule) (any, error) {
	sel := engine.Selector{Query: rule.Selector, Type: rule.SelectorType}

	if rule.Multiple {
		matches, err := el.QueryAll(sel)
		if err != nil {
			return nil, err
		}
		values := make([]string, 0, len(matches))
		for _, match := range matches {
			if v, ok := c.readValue(match, rule.Attribute); ok {
				values = append(values, v)
			}
		}
		return values, nil
	}

	match, err := el.QueryOne(sel)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}
	value, ok := c.readValue(match, rule.Attribute)
	if !ok {
		return nil, nil
	}
	return value, nil
}

// readValue reads one attribute from a matched element. "markdown" reads
// the outer HTML and converts it; everything else is delegated to the
// backend.
func (c *crawl) readValue(el engine.Element, attribute string) (string, bool) {
	if attribute == models.AttrMarkdown {
		outer, ok := el.Read(models.AttrHTML)
		if !ok {
			return "", false
		}
		md, err := c.toMarkdown(outer)
		if err != nil {
			return "", false
		}
		return md, true
	}
	return el.Read(attribute)
}
