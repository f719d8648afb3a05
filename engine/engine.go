package engine

import (
	"context"
	"fmt"

	"github.com/use-agent/gleaner/models"
)

// Backend is the rendering capability consumed by the crawler. The two
// implementations ("static" and "browser") share this contract; selection
// is a pure function of the configuration's engine value, with no fallback
// between variants.
type Backend interface {
	// Name returns the engine identifier ("static" or "browser").
	Name() string

	// Open loads a URL into a queryable page. It fails on network errors,
	// on exceeding the page load timeout, and (static variant) on a
	// non-success HTTP status.
	Open(ctx context.Context, rawURL string) (Page, error)

	// Close releases the backend's resources. For the browser variant this
	// kills the Chrome session; it must be called exactly once per crawl.
	Close() error
}

// Element is a handle to one document element. Absence of a match or an
// attribute is data, never an error: only a malformed selector errors.
type Element interface {
	// QueryOne returns the first match in document order, or (nil, nil)
	// when nothing matches.
	QueryOne(sel Selector) (Element, error)

	// QueryAll returns every match in document order. An empty slice, not
	// nil behaviour distinctions, signals no match.
	QueryAll(sel Selector) ([]Element, error)

	// Read returns the value named by attribute: "text" for trimmed
	// visible text, "html" for the outer HTML, anything else as an HTML
	// attribute. The boolean is false when the attribute is absent.
	Read(attribute string) (string, bool)
}

// Page is a loaded document. A Page is owned by exactly one visit and is
// never shared across concurrent visits.
type Page interface {
	Element

	// URL is the page's absolute URL, the base for resolving relative links.
	URL() string

	// HTML returns the full document markup.
	HTML() (string, error)

	// Navigate follows a link to rawURL without opening a new top-level
	// session. It invalidates the receiver: only the returned Page may be
	// queried or closed afterwards.
	Navigate(ctx context.Context, rawURL string) (Page, error)

	// Close releases the page handle.
	Close() error
}

// Selector identifies zero or more elements within a document.
type Selector struct {
	// Query is the selector string.
	Query string

	// Type is models.SelectorCSS or models.SelectorXPath. Empty means CSS.
	Type string

	// Wait asks the browser backend to wait up to the element wait timeout
	// for a first match to appear before querying. The static backend
	// ignores it.
	Wait bool
}

// Options carries per-crawl backend settings derived from the crawl
// configuration and the server's browser config.
type Options struct {
	// Wait holds the page load and element wait timeouts.
	Wait models.WaitConfig

	// Headers are extra request headers applied to every page load.
	Headers map[string]string

	// Stealth enables bot-detection evasion on the browser backend.
	Stealth bool

	// Browser configures the Chrome session (browser backend only).
	Browser BrowserOptions
}

// BrowserOptions mirrors the server-level Chrome settings.
type BrowserOptions struct {
	Headless  bool
	NoSandbox bool
	Bin       string
	Proxy     string
}

// New maps an engine name to a backend instance.
func New(name string, opts Options) (Backend, error) {
	switch name {
	case models.EngineStatic:
		return newStaticBackend(opts), nil
	case models.EngineBrowser:
		return newBrowserBackend(opts)
	default:
		return nil, models.NewEngineError(
			models.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported engine %q", name),
			nil,
		)
	}
}

// Supported lists the engine names New accepts.
func Supported() []string {
	return models.SupportedEngines()
}
