package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// HandlerFetcher serves requests from an in-process http.Handler.
// No socket is opened, which makes it suitable for crawling an application
// before it is deployed, or a static directory through http.FileServer.
type HandlerFetcher struct {
	handler http.Handler
	headers map[string]string
}

// NewHandlerFetcher creates a HandlerFetcher for h. Headers are added to
// every request.
func NewHandlerFetcher(h http.Handler, headers map[string]string) *HandlerFetcher {
	return &HandlerFetcher{handler: h, headers: headers}
}

// Fetch dispatches a GET request for pageURL to the handler.
func (f *HandlerFetcher) Fetch(ctx context.Context, pageURL string) (resp *Response, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &TransportError{URL: pageURL, Err: err}
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	// A panicking handler is a failed request, not a failed crawl.
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = &TransportError{URL: pageURL, Err: panicError{value: r}}
		}
	}()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{URL: pageURL, Err: err}
	}

	result := rec.Result()
	contentType := result.Header.Get("Content-Type")
	return &Response{
		StatusCode:   result.StatusCode,
		ContentType:  contentType,
		Body:         decodeBody(rec.Body.Bytes(), contentType),
		LastModified: parseLastModified(result.Header.Get("Last-Modified")),
	}, nil
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.value)
}
