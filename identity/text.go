package identity

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from seller-supplied rich text. Block elements are
// separated by spaces so words from adjacent paragraphs do not run together.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(html, " "))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	doc.Find("script, style").Remove()
	doc.Find("p, div, br, li, h1, h2, h3, h4, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	text := doc.Text()
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(text, " "))
}
