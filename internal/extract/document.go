package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page that answers XPath text queries offline.
type Document struct {
	root *html.Node
}

// ParseHTML parses r into a Document.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// Text implements TextQuerier.
func (d *Document) Text(ctx context.Context, xpath string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("context canceled: %w", err)
	}
	node, err := htmlquery.Query(d.root, xpath)
	if err != nil {
		return "", false, fmt.Errorf("evaluate %q: %w", xpath, err)
	}
	if node == nil {
		return "", false, nil
	}
	return htmlquery.InnerText(node), true, nil
}
