package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/gleaner/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// maxBody caps response reads to prevent unbounded memory use.
const maxBody = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// staticBackend performs a single HTTP GET per page and parses the returned
// markup without executing scripts. It carries a Chrome-like TLS fingerprint
// so plain fetches are not trivially distinguishable from a real browser.
type staticBackend struct {
	client *http.Client
	opts   Options
}

func newStaticBackend(opts Options) *staticBackend {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("static: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if opts.Browser.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Browser.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &staticBackend{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		opts: opts,
	}
}

func (b *staticBackend) Name() string { return models.EngineStatic }

func (b *staticBackend) Open(ctx context.Context, rawURL string) (Page, error) {
	if d := b.opts.Wait.PageLoadTimeoutDuration(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, models.NewEngineError(models.ErrCodePageLoad, "build request for "+rawURL, err)
	}

	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")
	for k, v := range b.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, models.NewEngineError(models.ErrCodePageLoad, "fetch "+rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, models.NewEngineError(
			models.ErrCodePageLoad,
			fmt.Sprintf("HTTP %d for %s", resp.StatusCode, rawURL),
			nil,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, models.NewEngineError(models.ErrCodePageLoad, "read body of "+rawURL, err)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewEngineError(models.ErrCodePageLoad, "parse markup of "+rawURL, err)
	}

	finalURL := resp.Request.URL
	return &staticPage{
		staticElement: staticElement{node: root},
		backend:       b,
		url:           finalURL.String(),
	}, nil
}

func (b *staticBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// staticElement wraps a parsed HTML node.
type staticElement struct {
	node *html.Node
}

func (e *staticElement) QueryOne(sel Selector) (Element, error) {
	nodes, err := queryNodes(e.node, sel)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return &staticElement{node: nodes[0]}, nil
}

func (e *staticElement) QueryAll(sel Selector) ([]Element, error) {
	nodes, err := queryNodes(e.node, sel)
	if err != nil {
		return nil, err
	}
	elements := make([]Element, len(nodes))
	for i, n := range nodes {
		elements[i] = &staticElement{node: n}
	}
	return elements, nil
}

func (e *staticElement) Read(attribute string) (string, bool) {
	switch attribute {
	case models.AttrText:
		return strings.TrimSpace(goquery.NewDocumentFromNode(e.node).Text()), true
	case models.AttrHTML:
		var buf bytes.Buffer
		if err := html.Render(&buf, e.node); err != nil {
			return "", false
		}
		return buf.String(), true
	default:
		for _, a := range e.node.Attr {
			if a.Key == attribute {
				return a.Val, true
			}
		}
		return "", false
	}
}

// queryNodes resolves a selector against a subtree. Only a malformed
// selector string errors; no match returns an empty slice.
func queryNodes(n *html.Node, sel Selector) ([]*html.Node, error) {
	switch sel.Type {
	case models.SelectorXPath:
		expr, err := xpath.Compile(sel.Query)
		if err != nil {
			return nil, models.NewEngineError(
				models.ErrCodeSelector,
				fmt.Sprintf("invalid xpath expression %q", sel.Query),
				err,
			)
		}
		return htmlquery.QuerySelectorAll(n, expr), nil
	default:
		s, err := cascadia.Parse(sel.Query)
		if err != nil {
			return nil, models.NewEngineError(
				models.ErrCodeSelector,
				fmt.Sprintf("invalid css selector %q", sel.Query),
				err,
			)
		}
		return cascadia.QueryAll(n, s), nil
	}
}

// staticPage is a fetched, parsed document.
type staticPage struct {
	staticElement
	backend *staticBackend
	url     string
}

func (p *staticPage) URL() string { return p.url }

func (p *staticPage) HTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, p.node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Navigate follows a link with the same client session: a fresh GET against
// the resolved URL.
func (p *staticPage) Navigate(ctx context.Context, rawURL string) (Page, error) {
	return p.backend.Open(ctx, rawURL)
}

func (p *staticPage) Close() error { return nil }
