package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/use-agent/gleaner/models"
)

const listingHTML = `<!DOCTYPE html>
<html>
<head><title>Listings</title></head>
<body>
	<h1> Widgets </h1>
	<ul>
		<li class="item"><a href="/widgets/1">Widget One</a></li>
		<li class="item"><a href="/widgets/2">Widget Two</a></li>
		<li class="item"><a href="/widgets/3">Widget Three</a></li>
	</ul>
	<a class="next" href="/page/2">Next</a>
</body>
</html>`

func newStaticForTest(t *testing.T, opts Options) Backend {
	t.Helper()
	if opts.Wait.PageLoadTimeout == 0 {
		opts.Wait.PageLoadTimeout = 5
	}
	b, err := New(models.EngineStatic, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestStaticOpenAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	b := newStaticForTest(t, Options{})
	page, err := b.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer page.Close()

	items, err := page.QueryAll(Selector{Query: "li.item"})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	link, err := items[1].QueryOne(Selector{Query: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if link == nil {
		t.Fatal("link not found")
	}
	if text, _ := link.Read(models.AttrText); text != "Widget Two" {
		t.Errorf("text = %q, want %q", text, "Widget Two")
	}
	if href, ok := link.Read("href"); !ok || href != "/widgets/2" {
		t.Errorf("href = %q (ok=%v), want /widgets/2", href, ok)
	}
}

func TestStaticReadSemantics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	b := newStaticForTest(t, Options{})
	page, err := b.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer page.Close()

	// Text reads are whitespace-trimmed.
	h1, _ := page.QueryOne(Selector{Query: "h1"})
	if text, _ := h1.Read(models.AttrText); text != "Widgets" {
		t.Errorf("text = %q, want trimmed %q", text, "Widgets")
	}

	// "html" reads the outer markup.
	if outer, ok := h1.Read(models.AttrHTML); !ok || outer != "<h1> Widgets </h1>" {
		t.Errorf("html = %q (ok=%v)", outer, ok)
	}

	// A missing attribute is absence, not an error.
	if _, ok := h1.Read("data-missing"); ok {
		t.Error("expected missing attribute to report ok=false")
	}

	// No match is (nil, nil), never an error.
	match, err := page.QueryOne(Selector{Query: ".does-not-exist"})
	if err != nil {
		t.Fatalf("no match must not error: %v", err)
	}
	if match != nil {
		t.Fatal("expected nil element for no match")
	}

	// XPath queries resolve against the same tree.
	nodes, err := page.QueryAll(Selector{Query: "//li[@class='item']/a", Type: models.SelectorXPath})
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 3 {
		t.Fatalf("xpath matched %d nodes, want 3", len(nodes))
	}
}

func TestStaticOpenHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	b := newStaticForTest(t, Options{})
	_, err := b.Open(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for HTTP 404")
	}
	var engErr *models.EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("expected EngineError, got %T", err)
	}
	if engErr.Code != models.ErrCodePageLoad {
		t.Errorf("code = %q, want %q", engErr.Code, models.ErrCodePageLoad)
	}
}

func TestStaticOpenSendsHeaders(t *testing.T) {
	var gotUA, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer srv.Close()

	b := newStaticForTest(t, Options{Headers: map[string]string{"X-Custom": "token-123"}})
	page, err := b.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	page.Close()

	if gotUA != chromeUA {
		t.Errorf("User-Agent = %q, want the Chrome UA", gotUA)
	}
	if gotCustom != "token-123" {
		t.Errorf("X-Custom = %q, want token-123", gotCustom)
	}
}

func TestStaticFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><h1>Moved</h1></body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := newStaticForTest(t, Options{})
	page, err := b.Open(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatal(err)
	}
	defer page.Close()

	// The page URL reflects the final location so relative links resolve
	// against the right base.
	if page.URL() != srv.URL+"/new" {
		t.Errorf("page URL = %q, want %q", page.URL(), srv.URL+"/new")
	}
}

func TestStaticMalformedSelector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer srv.Close()

	b := newStaticForTest(t, Options{})
	page, err := b.Open(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer page.Close()

	_, err = page.QueryAll(Selector{Query: "div[unclosed"})
	if err == nil {
		t.Fatal("expected error for malformed selector")
	}
	var engErr *models.EngineError
	if !errors.As(err, &engErr) || engErr.Code != models.ErrCodeSelector {
		t.Fatalf("expected SELECTOR_INVALID, got %v", err)
	}
}

func TestNewRejectsUnknownEngine(t *testing.T) {
	if _, err := New("phantomjs", Options{}); err == nil {
		t.Fatal("expected error for unknown engine name")
	}
}
