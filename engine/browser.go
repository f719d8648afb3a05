package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/gleaner/models"
)

// domStableWindow is how long the DOM must stay unchanged after load before
// the page is considered ready for querying.
const domStableWindow = 300 * time.Millisecond

// browserBackend drives a real headless Chrome session via CDP. The session
// is owned by one crawl and must be released exactly once via Close.
type browserBackend struct {
	browser *rod.Browser
	opts    Options
}

func newBrowserBackend(opts Options) (*browserBackend, error) {
	l := launcher.New().
		Headless(opts.Browser.Headless).
		NoSandbox(opts.Browser.NoSandbox)

	if opts.Browser.Bin != "" {
		l = l.Bin(opts.Browser.Bin)
	}
	if opts.Browser.Proxy != "" {
		l = l.Proxy(opts.Browser.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewEngineError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewEngineError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}
	slog.Debug("browser session launched", "controlURL", controlURL)

	return &browserBackend{browser: browser, opts: opts}, nil
}

func (b *browserBackend) Name() string { return models.EngineBrowser }

func (b *browserBackend) Open(ctx context.Context, rawURL string) (Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewEngineError(
			models.ErrCodeBrowserCrash,
			"failed to create page",
			err,
		)
	}

	// Stealth JS and extra headers only take effect for navigations that
	// happen after they are installed.
	if b.opts.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}
	if len(b.opts.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(b.opts.Headers),
		}.Call(page)
	}

	bp := &browserPage{backend: b, page: page, url: rawURL}
	if err := bp.load(ctx, rawURL); err != nil {
		_ = page.Close()
		return nil, err
	}
	return bp, nil
}

func (b *browserBackend) Close() error {
	return b.browser.Close()
}

// browserPage is one Chrome tab. Navigate reuses the tab, so the tab is
// closed once regardless of how many list pages it rendered.
type browserPage struct {
	backend *browserBackend
	page    *rod.Page
	url     string
}

// load navigates the tab under the page load timeout and waits for the DOM
// to settle. The timeout context is bound only for the navigation itself so
// later queries and cleanup use the original page reference.
func (p *browserPage) load(ctx context.Context, rawURL string) error {
	if d := p.backend.opts.Wait.PageLoadTimeoutDuration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	nav := p.page.Context(ctx)
	if err := nav.Navigate(rawURL); err != nil {
		return models.NewEngineError(models.ErrCodePageLoad, "navigate to "+rawURL, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return models.NewEngineError(models.ErrCodePageLoad, "load "+rawURL, err)
	}
	_ = nav.WaitDOMStable(domStableWindow, 0.1)
	return nil
}

func (p *browserPage) URL() string {
	if info, err := p.page.Info(); err == nil && info.URL != "" {
		return info.URL
	}
	return p.url
}

func (p *browserPage) HTML() (string, error) {
	return p.page.HTML()
}

func (p *browserPage) Navigate(ctx context.Context, rawURL string) (Page, error) {
	next := &browserPage{backend: p.backend, page: p.page, url: rawURL}
	if err := next.load(ctx, rawURL); err != nil {
		return nil, err
	}
	return next, nil
}

func (p *browserPage) Close() error {
	return p.page.Close()
}

func (p *browserPage) QueryOne(sel Selector) (Element, error) {
	elements, err := p.QueryAll(sel)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, nil
	}
	return elements[0], nil
}

func (p *browserPage) QueryAll(sel Selector) ([]Element, error) {
	if sel.Wait {
		p.waitFor(sel)
	}

	var els rod.Elements
	var err error
	if sel.Type == models.SelectorXPath {
		els, err = p.page.ElementsX(sel.Query)
	} else {
		els, err = p.page.Elements(sel.Query)
	}
	if err != nil {
		return nil, models.NewEngineError(
			models.ErrCodeSelector,
			fmt.Sprintf("invalid selector %q", sel.Query),
			err,
		)
	}
	return wrapElements(els), nil
}

func (p *browserPage) Read(attribute string) (string, bool) {
	// Page-level reads delegate to the document element so a page can act
	// as the pseudo-item when navigation is not configured.
	root, err := p.page.Element("html")
	if err != nil {
		return "", false
	}
	return (&browserElement{el: root}).Read(attribute)
}

// waitFor blocks until a first match appears or the element wait timeout
// elapses. Absence after the timeout is not an error.
func (p *browserPage) waitFor(sel Selector) {
	d := p.backend.opts.Wait.ElementWaitDuration()
	if d <= 0 {
		return
	}
	waiter := p.page.Timeout(d)
	if sel.Type == models.SelectorXPath {
		_, _ = waiter.ElementX(sel.Query)
	} else {
		_, _ = waiter.Element(sel.Query)
	}
}

// browserElement wraps one live DOM element handle.
type browserElement struct {
	el *rod.Element
}

func (e *browserElement) QueryOne(sel Selector) (Element, error) {
	elements, err := e.QueryAll(sel)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, nil
	}
	return elements[0], nil
}

func (e *browserElement) QueryAll(sel Selector) ([]Element, error) {
	var els rod.Elements
	var err error
	if sel.Type == models.SelectorXPath {
		els, err = e.el.ElementsX(sel.Query)
	} else {
		els, err = e.el.Elements(sel.Query)
	}
	if err != nil {
		return nil, models.NewEngineError(
			models.ErrCodeSelector,
			fmt.Sprintf("invalid selector %q", sel.Query),
			err,
		)
	}
	return wrapElements(els), nil
}

func (e *browserElement) Read(attribute string) (string, bool) {
	switch attribute {
	case models.AttrText:
		text, err := e.el.Text()
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(text), true
	case models.AttrHTML:
		outer, err := e.el.HTML()
		if err != nil {
			return "", false
		}
		return outer, true
	default:
		value, err := e.el.Attribute(attribute)
		if err != nil || value == nil {
			return "", false
		}
		return *value, true
	}
}

func wrapElements(els rod.Elements) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &browserElement{el: el}
	}
	return out
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
