// Package extract turns page markup into normalized plain text.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"pagerag/internal/domain"
)

// Extraction modes.
const (
	ModeText        = "text"
	ModeReadability = "readability"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// blockElements get a space on each side in readability mode so words in
// adjacent blocks stay apart once tags are dropped.
const blockElements = "p, div, br, li, td, tr, h1, h2, h3, h4, h5, h6"

// Extractor strips markup from fetched pages.
type Extractor struct {
	mode string
}

// New creates an extractor for the given mode. Unknown modes are rejected.
func New(mode string) (*Extractor, error) {
	switch mode {
	case "", ModeText:
		return &Extractor{mode: ModeText}, nil
	case ModeReadability:
		return &Extractor{mode: ModeReadability}, nil
	default:
		return nil, fmt.Errorf("%w: unknown extractor mode %q", domain.ErrBadSetting, mode)
	}
}

// Mode returns the extraction mode in use.
func (e *Extractor) Mode() string { return e.mode }

// Extract returns the visible text of markup with script and style content
// removed and whitespace collapsed. pageURL is only used by readability mode.
func (e *Extractor) Extract(markup []byte, pageURL string) (string, error) {
	if e.mode == ModeReadability {
		if doc, ok := mainContent(markup, pageURL); ok {
			return visibleText(doc), nil
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}
	return visibleText(doc), nil
}

func visibleText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	return NormalizeText(doc.Text())
}

// mainContent isolates the article body. Pages readability cannot handle
// fall back to the full document.
func mainContent(markup []byte, pageURL string) (*goquery.Document, bool) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, false
	}
	article, err := readability.FromReader(bytes.NewReader(markup), parsedURL)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return nil, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, false
	}
	doc.Find(blockElements).BeforeHtml(" ").AfterHtml(" ")
	return doc, true
}

// NormalizeText collapses every whitespace run into one space and trims the
// result.
func NormalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}
