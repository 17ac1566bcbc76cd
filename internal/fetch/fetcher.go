package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnexpectedStatus classifies any response whose status is not 200.
// Fetchers never return it; the crawl engine uses it when logging.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Response is what the crawler needs from one fetched URL.
type Response struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// ContentType is the raw Content-Type header value.
	ContentType string

	// Body is the response body decoded to UTF-8 text.
	Body string

	// LastModified is parsed from the Last-Modified header.
	// It is the zero time when the header is absent or invalid.
	LastModified time.Time
}

// IsHTML reports whether the response declares an HTML content type.
func (r *Response) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "text/html")
}

// Fetcher retrieves a single URL.
//
// Implementations must be safe for concurrent use. A returned error always
// means the request did not produce a response; non-200 statuses are
// reported through Response.StatusCode.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}

// TransportError reports that a request failed before a response arrived:
// connection refused, timeout, protocol violation and so on.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// parseLastModified parses an HTTP date, returning the zero time on failure.
func parseLastModified(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
