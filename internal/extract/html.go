package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// Block-level open tags become newlines so readable structure survives.
	blockTagRe = regexp.MustCompile(`(?i)<(p|div|br|h[1-6]|li|tr)[^>]*>`)
	// Anything still tagged after block mapping is dropped.
	anyTagRe       = regexp.MustCompile(`<[^>]*>`)
	paragraphEndRe = regexp.MustCompile(`(?i)</w:p>`)
	xmlTagRe       = regexp.MustCompile(`<[^>]*>`)
)

// FromHTML extracts readable text from an HTML document: chrome elements
// (script, style, nav, header, footer) are removed, block tags map to
// newlines, and entities are decoded.
func FromHTML(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer").Remove()

	body := doc.Find("body")
	markup, err := body.Html()
	if err != nil || strings.TrimSpace(markup) == "" {
		markup, err = doc.Html()
		if err != nil {
			return "", fmt.Errorf("serialize html: %w", err)
		}
	}

	text := blockTagRe.ReplaceAllString(markup, "\n")
	text = anyTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	return CleanText(text), nil
}
