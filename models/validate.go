package models

import (
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
)

// Validate checks a configuration before any crawl starts. It returns the
// list of schema errors (empty means valid) and non-blocking warnings.
// The engine never sees an invalid configuration.
func (c *CrawlConfig) Validate() (errs []string, warnings []string) {
	if c.StartURL == "" {
		errs = append(errs, "start_url is required")
	} else if u, err := url.Parse(c.StartURL); err != nil {
		errs = append(errs, fmt.Sprintf("start_url is not a valid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, "start_url must be an absolute http(s) URL")
	}

	switch c.Engine {
	case "", EngineStatic, EngineBrowser:
	default:
		errs = append(errs, fmt.Sprintf("engine %q is not supported (choose one of %v)", c.Engine, SupportedEngines()))
	}

	if len(c.Extractors) == 0 {
		errs = append(errs, "at least one extractor is required")
	}
	seen := make(map[string]struct{}, len(c.Extractors))
	for i, ex := range c.Extractors {
		if ex.FieldName == "" {
			errs = append(errs, fmt.Sprintf("extractor %d: field_name is required", i))
		} else if _, dup := seen[ex.FieldName]; dup {
			errs = append(errs, fmt.Sprintf("extractor %d: duplicate field_name %q", i, ex.FieldName))
		} else {
			seen[ex.FieldName] = struct{}{}
		}

		if ex.Selector == "" {
			errs = append(errs, fmt.Sprintf("extractor %d: selector is required", i))
			continue
		}
		if err := checkSelector(ex.Selector, ex.SelectorType); err != nil {
			errs = append(errs, fmt.Sprintf("extractor %d: %v", i, err))
		}
	}

	if c.Navigation != nil {
		if c.Navigation.ListItemsSelector == "" {
			errs = append(errs, "navigation: list_items_selector is required")
		} else if err := checkSelector(c.Navigation.ListItemsSelector, SelectorCSS); err != nil {
			errs = append(errs, fmt.Sprintf("navigation: list_items_selector: %v", err))
		}
		if c.Navigation.DetailLinkSelector != "" {
			if err := checkSelector(c.Navigation.DetailLinkSelector, SelectorCSS); err != nil {
				errs = append(errs, fmt.Sprintf("navigation: detail_link_selector: %v", err))
			}
		}
	}

	if c.Pagination != nil && c.Pagination.Enabled {
		if c.Pagination.NextPageSelector == "" {
			errs = append(errs, "pagination: next_page_selector is required when pagination is enabled")
		} else if err := checkSelector(c.Pagination.NextPageSelector, SelectorCSS); err != nil {
			errs = append(errs, fmt.Sprintf("pagination: next_page_selector: %v", err))
		}
		if c.Pagination.MaxPages < 0 {
			errs = append(errs, "pagination: max_pages must not be negative")
		}
	}

	if c.Wait.PageLoadTimeout < 0 {
		errs = append(errs, "wait_config: page_load_timeout must not be negative")
	}
	if c.Wait.ElementWaitTimeout < 0 {
		errs = append(errs, "wait_config: element_wait_timeout must not be negative")
	}
	if c.Wait.DelayBetweenRequests < 0 {
		errs = append(errs, "wait_config: delay_between_requests must not be negative")
	}

	if c.Content != nil && c.Content.Enabled {
		switch c.Content.Format {
		case "", "markdown", "text":
		default:
			errs = append(errs, fmt.Sprintf("content: format %q is not supported", c.Content.Format))
		}
	}

	if c.Engine == EngineBrowser && c.Wait.DelayBetweenRequests < 1.0 && c.Wait.delaySet {
		warnings = append(warnings, "consider a delay_between_requests of at least 1s with the browser engine to avoid being blocked")
	}

	return errs, warnings
}

// checkSelector verifies the selector string parses for its type. Malformed
// selectors are rejected here so they never surface as per-item failures.
func checkSelector(sel, selType string) error {
	switch selType {
	case "", SelectorCSS:
		if _, err := cascadia.Parse(sel); err != nil {
			return fmt.Errorf("invalid css selector %q: %v", sel, err)
		}
	case SelectorXPath:
		if _, err := xpath.Compile(sel); err != nil {
			return fmt.Errorf("invalid xpath expression %q: %v", sel, err)
		}
	default:
		return fmt.Errorf("selector_type %q is not supported", selType)
	}
	return nil
}
