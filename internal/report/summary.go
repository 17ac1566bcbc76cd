package report

import (
	"time"

	"github.com/nao1215/sitemaps/internal/crawler"
)

// Summary is the data shared by every report format.
type Summary struct {
	// Version is the sitemaps version that produced the crawl.
	Version string `json:"version,omitempty"`

	// Root is the normalized root URL.
	Root string `json:"root"`

	// Output is where the sitemap was written, "-" for standard output.
	Output string `json:"output,omitempty"`

	// FinishedAt is when the crawl completed.
	FinishedAt time.Time `json:"finishedAt"`

	// ElapsedMillis is the crawl duration in milliseconds.
	ElapsedMillis int64 `json:"elapsedMillis"`

	// Stats are the crawl counters.
	Stats Stats `json:"stats"`

	// MaxInFlight is the peak number of simultaneous fetches, when known.
	MaxInFlight int `json:"maxInFlight,omitempty"`

	// Changed reports whether the URL set differs from the previous
	// recorded run. Nil when history is disabled.
	Changed *bool `json:"changed,omitempty"`

	// Pages lists the URLs of the sitemap in order.
	Pages []Page `json:"pages"`
}

// Stats mirrors crawler.Stats with JSON names.
type Stats struct {
	Discovered       int `json:"discovered"`
	Fetched          int `json:"fetched"`
	Results          int `json:"results"`
	TransportErrors  int `json:"transportErrors"`
	UnexpectedStatus int `json:"unexpectedStatus"`
	NonHTML          int `json:"nonHtml"`
	Malformed        int `json:"malformedLinks"`
}

// Page is one sitemap URL.
type Page struct {
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	ContentType  string     `json:"contentType,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// NewSummary builds a Summary from a crawl result.
func NewSummary(result *crawler.Result, finishedAt time.Time) *Summary {
	s := &Summary{
		Root:          result.Root,
		FinishedAt:    finishedAt,
		ElapsedMillis: result.Stats.Elapsed.Milliseconds(),
		Stats: Stats{
			Discovered:       result.Stats.Discovered,
			Fetched:          result.Stats.Fetched,
			Results:          result.Stats.Results,
			TransportErrors:  result.Stats.TransportErrors,
			UnexpectedStatus: result.Stats.UnexpectedStatus,
			NonHTML:          result.Stats.NonHTML,
			Malformed:        result.Stats.Malformed,
		},
		Pages: make([]Page, 0, len(result.URLs)),
	}

	for _, u := range result.URLs {
		p := result.Pages[u]
		page := Page{URL: u, Title: p.Title, ContentType: p.ContentType}
		if !p.LastModified.IsZero() {
			lm := p.LastModified.UTC()
			page.LastModified = &lm
		}
		s.Pages = append(s.Pages, page)
	}
	return s
}

// Failures is the number of fetches that did not produce a sitemap entry.
func (s *Summary) Failures() int {
	return s.Stats.TransportErrors + s.Stats.UnexpectedStatus
}
