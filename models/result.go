package models

// Record is one extracted item: field name → string, []string, or nil.
// A nil value means the selector matched nothing for that field.
type Record map[string]any

// CrawlError is a non-fatal error accumulated during a crawl, tagged with
// the URL or item index it occurred on.
type CrawlError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// CrawlResult is the terminal aggregate of one crawl invocation.
//
// Success is false only when the initial list page (or, absent navigation,
// the single start page) failed to load. Item-scoped errors accumulate in
// Errors without flipping Success; a crawl can succeed with zero records.
type CrawlResult struct {
	Success bool `json:"success"`

	// Data holds the extracted records in visit order.
	Data []Record `json:"data"`

	// NextPageURL is the unvisited next list page when pagination stopped
	// at max_pages; a caller resumes by re-invoking with start_url set to
	// this value. nil serializes as null, so the key is always present.
	NextPageURL *string `json:"next_page_url"`

	// TotalItems is the count of records in Data.
	TotalItems int `json:"total_items"`

	// Context is the configuration's opaque context, passed through.
	Context map[string]any `json:"context,omitempty"`

	// Errors holds every non-fatal error plus, on failure, the fatal one.
	Errors []CrawlError `json:"errors"`
}
