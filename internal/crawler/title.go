package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageTitle returns the trimmed text of the first <title> element.
func pageTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
