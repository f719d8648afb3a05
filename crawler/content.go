package crawler

import (
	"fmt"
	nurl "net/url"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/gleaner/engine"
	"github.com/use-agent/gleaner/models"
)

var (
	mdOnce sync.Once
	mdConv *converter.Converter
)

// markdownConverter returns the shared, goroutine-safe converter:
//
//   - base plugin: strips script, style, iframe, noscript, head, meta,
//     link, input, textarea, and HTML comments.
//   - commonmark plugin: standard Markdown rendering.
//   - table plugin: preserves table structure with minimal cell padding.
func markdownConverter() *converter.Converter {
	mdOnce.Do(func() {
		mdConv = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		)
	})
	return mdConv
}

func (c *crawl) toMarkdown(htmlContent string) (string, error) {
	return markdownConverter().ConvertString(htmlContent)
}

// contentExtractor captures the main content of full pages via the Mozilla
// Readability algorithm. Only full-page records get content: the algorithm
// needs a whole document, so item-element records are left alone.
type contentExtractor struct {
	cfg *models.ContentConfig
}

func newContentExtractor(cfg *models.ContentConfig) *contentExtractor {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &contentExtractor{cfg: cfg}
}

// capture writes the extracted content into the record under the configured
// field name. A failure leaves the record's other fields untouched.
func (x *contentExtractor) capture(page engine.Page, record models.Record) error {
	raw, err := page.HTML()
	if err != nil {
		return err
	}
	pageURL, err := nurl.Parse(page.URL())
	if err != nil {
		return fmt.Errorf("invalid page URL: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(raw), pageURL)
	if err != nil {
		return fmt.Errorf("readability: %w", err)
	}

	switch x.cfg.Format {
	case "text":
		record[x.cfg.FieldName] = strings.TrimSpace(article.TextContent)
	default:
		md, err := markdownConverter().ConvertString(article.Content, converter.WithDomain(pageURL.Host))
		if err != nil {
			return fmt.Errorf("markdown: %w", err)
		}
		record[x.cfg.FieldName] = strings.TrimSpace(md)
	}
	return nil
}
