package datasource

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extractor turns an HTML page into plain body text.
type Extractor interface {
	Extract(r io.Reader, pageURL string) (string, error)
}

// NewExtractor returns the extractor named by fetch.extractor.
func NewExtractor(name string) (Extractor, error) {
	switch name {
	case "", "paragraphs":
		return ParagraphExtractor{}, nil
	case "readability":
		return ReadabilityExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
}

// ParagraphExtractor joins the text of every <p> element in document order
// with a single space.
type ParagraphExtractor struct{}

// Extract implements Extractor.
func (ParagraphExtractor) Extract(r io.Reader, _ string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return paragraphText(doc), nil
}

func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	return strings.Join(parts, " ")
}

// ReadabilityExtractor keeps only the main article content. Pages where
// readability finds nothing fall back to paragraph text.
type ReadabilityExtractor struct{}

// Extract implements Extractor.
func (ReadabilityExtractor) Extract(r io.Reader, pageURL string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	u, _ := url.Parse(pageURL)
	if article, err := readability.FromReader(bytes.NewReader(data), u); err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}
	return ParagraphExtractor{}.Extract(bytes.NewReader(data), pageURL)
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
