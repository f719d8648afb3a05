package models

import (
	"encoding/json"
	"time"
)

// Engine identifiers accepted in CrawlConfig.Engine.
const (
	EngineStatic  = "static"
	EngineBrowser = "browser"
)

// Extractor attribute values with special meaning. Any other attribute
// string is read as a plain HTML attribute of the matched element.
const (
	AttrText     = "text"
	AttrHTML     = "html"
	AttrMarkdown = "markdown"
)

// Selector types accepted in ExtractorRule.SelectorType.
const (
	SelectorCSS   = "css"
	SelectorXPath = "xpath"
)

// SupportedEngines lists the valid CrawlConfig.Engine values.
func SupportedEngines() []string {
	return []string{EngineStatic, EngineBrowser}
}

// CrawlConfig is the declarative crawl description submitted by clients.
// It is immutable once validated; the crawler never writes back into it.
type CrawlConfig struct {
	// StartURL is the first page to load. Must be an absolute http(s) URL.
	StartURL string `json:"start_url"`

	// Engine selects the rendering backend: "static" (single GET, no
	// script execution) or "browser" (headless Chrome). Default: "static".
	Engine string `json:"engine,omitempty"`

	// Stealth enables bot-detection evasion JS on the browser engine.
	// Ignored by the static engine.
	Stealth bool `json:"stealth,omitempty"`

	// Headers are extra request headers applied to every page load.
	Headers map[string]string `json:"headers,omitempty"`

	// Navigation configures list-to-detail crawling. When nil, the start
	// page itself is the sole extraction target.
	Navigation *NavigationConfig `json:"navigation,omitempty"`

	// Extractors is the ordered, non-empty list of field rules applied to
	// each record source.
	Extractors []ExtractorRule `json:"extractors"`

	// Pagination configures traversal across successive list pages.
	Pagination *PaginationConfig `json:"pagination,omitempty"`

	// Wait holds timeouts and inter-request pacing.
	Wait WaitConfig `json:"wait_config"`

	// Content configures readability-based main-content capture.
	Content *ContentConfig `json:"content,omitempty"`

	// Context is opaque caller data echoed back in the result.
	Context map[string]any `json:"context,omitempty"`
}

// NavigationConfig describes how to walk from a list page to detail pages.
type NavigationConfig struct {
	// ListItemsSelector matches one element per item on the list page.
	ListItemsSelector string `json:"list_items_selector"`

	// DetailLinkSelector matches the detail link inside each item. When
	// empty, extractors run directly against the item element.
	DetailLinkSelector string `json:"detail_link_selector,omitempty"`

	// DetailLinkAttribute is the attribute holding the detail URL.
	// Default: "href".
	DetailLinkAttribute string `json:"detail_link_attribute,omitempty"`
}

// ExtractorRule maps one selector to one output field.
type ExtractorRule struct {
	// FieldName is the output key. Unique within the configuration.
	FieldName string `json:"field_name"`

	// Selector locates the element(s) to read.
	Selector string `json:"selector"`

	// SelectorType is "css" (default) or "xpath".
	SelectorType string `json:"selector_type,omitempty"`

	// Attribute is "text" (default), "html", "markdown", or any HTML
	// attribute name.
	Attribute string `json:"attribute,omitempty"`

	// Multiple collects every match in document order instead of the first.
	Multiple bool `json:"multiple,omitempty"`
}

// PaginationConfig describes traversal across list pages via a next link.
type PaginationConfig struct {
	Enabled bool `json:"enabled"`

	// NextPageSelector matches the next-page link on the list page.
	NextPageSelector string `json:"next_page_selector,omitempty"`

	// NextPageAttribute is the attribute holding the next URL.
	// Default: "href".
	NextPageAttribute string `json:"next_page_attribute,omitempty"`

	// MaxPages caps the number of list pages visited in this invocation.
	// When the cap stops the crawl, the unvisited next URL is surfaced in
	// CrawlResult.NextPageURL. Zero means unlimited.
	MaxPages int `json:"max_pages,omitempty"`
}

// WaitConfig holds timeouts (whole seconds) and pacing (fractional seconds).
type WaitConfig struct {
	PageLoadTimeout      int     `json:"page_load_timeout,omitempty"`
	ElementWaitTimeout   int     `json:"element_wait_timeout,omitempty"`
	DelayBetweenRequests float64 `json:"delay_between_requests,omitempty"`

	// delaySet distinguishes an explicit 0 from an absent field.
	delaySet bool
}

// ContentConfig enables readability main-content capture on full-page
// records (detail pages, or the start page when navigation is absent).
type ContentConfig struct {
	Enabled bool `json:"enabled"`

	// Format is "markdown" (default) or "text".
	Format string `json:"format,omitempty"`

	// FieldName is the record key for the captured content.
	// Default: "content".
	FieldName string `json:"field_name,omitempty"`
}

// UnmarshalJSON records whether delay_between_requests was present, so an
// explicit 0 (no pacing) is not overwritten by the 1s default.
func (w *WaitConfig) UnmarshalJSON(data []byte) error {
	var plain struct {
		PageLoadTimeout      int      `json:"page_load_timeout"`
		ElementWaitTimeout   int      `json:"element_wait_timeout"`
		DelayBetweenRequests *float64 `json:"delay_between_requests"`
	}
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	w.PageLoadTimeout = plain.PageLoadTimeout
	w.ElementWaitTimeout = plain.ElementWaitTimeout
	if plain.DelayBetweenRequests != nil {
		w.DelayBetweenRequests = *plain.DelayBetweenRequests
		w.delaySet = true
	}
	return nil
}

// PageLoadTimeoutDuration returns the page load deadline as a Duration.
func (w WaitConfig) PageLoadTimeoutDuration() time.Duration {
	return time.Duration(w.PageLoadTimeout) * time.Second
}

// ElementWaitDuration returns the element wait deadline as a Duration.
func (w WaitConfig) ElementWaitDuration() time.Duration {
	return time.Duration(w.ElementWaitTimeout) * time.Second
}

// DelayDuration returns the inter-request delay as a Duration.
func (w WaitConfig) DelayDuration() time.Duration {
	return time.Duration(w.DelayBetweenRequests * float64(time.Second))
}

// Defaults fills zero-valued optional fields in place.
func (c *CrawlConfig) Defaults() {
	if c.Engine == "" {
		c.Engine = EngineStatic
	}
	if c.Navigation != nil && c.Navigation.DetailLinkAttribute == "" {
		c.Navigation.DetailLinkAttribute = "href"
	}
	for i := range c.Extractors {
		if c.Extractors[i].SelectorType == "" {
			c.Extractors[i].SelectorType = SelectorCSS
		}
		if c.Extractors[i].Attribute == "" {
			c.Extractors[i].Attribute = AttrText
		}
	}
	if c.Pagination != nil && c.Pagination.NextPageAttribute == "" {
		c.Pagination.NextPageAttribute = "href"
	}
	if c.Wait.PageLoadTimeout == 0 {
		c.Wait.PageLoadTimeout = 10
	}
	if c.Wait.ElementWaitTimeout == 0 {
		c.Wait.ElementWaitTimeout = 5
	}
	if c.Wait.DelayBetweenRequests == 0 && !c.Wait.delaySet {
		c.Wait.DelayBetweenRequests = 1.0
	}
	if c.Content != nil {
		if c.Content.Format == "" {
			c.Content.Format = "markdown"
		}
		if c.Content.FieldName == "" {
			c.Content.FieldName = "content"
		}
	}
}
