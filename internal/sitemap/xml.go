package sitemap

import (
	"strconv"
	"strings"
	"time"
)

const (
	// xmlDeclaration is the first line of every sitemap document.
	xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>`

	// urlsetOpen declares the sitemap namespace and its schema location.
	urlsetOpen = `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
		`xsi:schemaLocation="http://www.sitemaps.org/schemas/sitemap/0.9 ` +
		`http://www.sitemaps.org/schemas/sitemap/0.9/sitemap.xsd">`

	urlsetClose = `</urlset>`

	// indent precedes each <url> line in the compact form.
	indent = "    "

	// DefaultChangeFreq is the change frequency of the default tag.
	DefaultChangeFreq = "daily"

	// DefaultPriority is used when an entry does not set a priority.
	DefaultPriority = 0.5

	// lastModLayout is the W3C date form required for <lastmod>.
	lastModLayout = "2006-01-02"
)

// ChangeFreqs lists the values the sitemap protocol allows for <changefreq>.
var ChangeFreqs = []string{"always", "hourly", "daily", "weekly", "monthly", "yearly", "never"}

// TagFunc renders the <url> element for one URL on a single line.
type TagFunc func(url string) string

// DefaultTag renders a URL with a daily change frequency.
func DefaultTag(url string) string {
	return "<url><loc>" + escape(url) + "</loc><changefreq>" + DefaultChangeFreq + "</changefreq></url>"
}

// Serialize renders urls as a sitemap document with one <url> line per URL,
// in the given order. A nil tag uses DefaultTag. The output ends with a
// newline and is identical for identical input.
func Serialize(urls []string, tag TagFunc) string {
	if tag == nil {
		tag = DefaultTag
	}

	var b strings.Builder
	b.WriteString(xmlDeclaration)
	b.WriteString("\n")
	b.WriteString(urlsetOpen)
	b.WriteString("\n")
	for _, u := range urls {
		b.WriteString(indent)
		b.WriteString(tag(u))
		b.WriteString("\n")
	}
	b.WriteString(urlsetClose)
	b.WriteString("\n")
	return b.String()
}

// Entry is one <url> element with its optional metadata.
type Entry struct {
	// Loc is the absolute page URL.
	Loc string

	// LastMod is the last modification date. Zero omits <lastmod>.
	LastMod time.Time

	// ChangeFreq is the expected change frequency. Empty omits <changefreq>.
	ChangeFreq string

	// Priority is always emitted.
	Priority float64
}

// fields returns the element names and values of e in document order.
// Absent fields are left out rather than emitted empty.
func (e Entry) fields() [][2]string {
	fields := [][2]string{{"loc", escape(e.Loc)}}
	if !e.LastMod.IsZero() {
		fields = append(fields, [2]string{"lastmod", e.LastMod.Format(lastModLayout)})
	}
	if e.ChangeFreq != "" {
		fields = append(fields, [2]string{"changefreq", escape(e.ChangeFreq)})
	}
	fields = append(fields, [2]string{"priority", formatPriority(e.Priority)})
	return fields
}

// Tag renders e as a single-line <url> element.
func (e Entry) Tag() string {
	var b strings.Builder
	b.WriteString("<url>")
	for _, f := range e.fields() {
		b.WriteString("<" + f[0] + ">" + f[1] + "</" + f[0] + ">")
	}
	b.WriteString("</url>")
	return b.String()
}

// EntryTag returns a TagFunc that renders the entry built by lookup.
func EntryTag(lookup func(url string) Entry) TagFunc {
	return func(url string) string {
		return lookup(url).Tag()
	}
}

// formatPriority prints p as a decimal with at least one fractional digit,
// e.g. 0.5, 1.0, 0.25.
func formatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// escape applies the entity escaping the sitemap protocol requires.
func escape(s string) string {
	return xmlEscaper.Replace(s)
}
