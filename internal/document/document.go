// Package document wraps fetched pages with the small query surface the
// extractor and discoverers need: the embedded JSON payload and CSS
// selection over the rendered markup.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

const payloadSelector = `script[type="application/json"]`

// Document is a parsed page.
type Document struct {
	url string
	doc *goquery.Document
}

// Parse builds a Document from a response body.
func Parse(url string, body []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{url: url, doc: doc}, nil
}

// URL returns the address the document was fetched from.
func (d *Document) URL() string {
	return d.url
}

// EmbeddedJSON returns the text of the first application/json script block.
func (d *Document) EmbeddedJSON() ([]byte, bool) {
	sel := d.doc.Find(payloadSelector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return nil, false
	}
	return []byte(text), true
}

// Find selects markup nodes.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Attr returns the named attribute of the first node matching selector.
func (d *Document) Attr(selector, name string) (string, bool) {
	return d.doc.Find(selector).First().Attr(name)
}

// Text returns the trimmed text of the first node matching selector.
func (d *Document) Text(selector string) string {
	return strings.TrimSpace(d.doc.Find(selector).First().Text())
}

// Resolve resolves href against the document URL.
func (d *Document) Resolve(href string) (string, error) {
	resolved, err := crawler.ResolveURL(d.url, href)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", href, err)
	}
	return resolved, nil
}
