package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
	"golang.org/x/text/transform"
)

// Default HTTPFetcher settings.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
	DefaultUserAgent   = "sitemaps/1.0 (+https://github.com/nao1215/sitemaps)"
)

// HTTPFetcher fetches pages over the network.
//
// Redirects are not followed: a 3xx response is returned as is, and the
// crawler treats it like any other non-200 status. Bodies are decoded to
// UTF-8 using the charset from the Content-Type header or the document.
type HTTPFetcher struct {
	// client performs the requests.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// headers are extra request headers.
	headers map[string]string

	// cookie is a raw Cookie header value, e.g. "session=abc".
	cookie string

	// maxBodySize caps the bytes read from a response body.
	maxBodySize int64

	// limiter throttles requests per host. Nil disables throttling.
	limiter *HostLimiter

	// timeout applies to the whole request including the body.
	timeout time.Duration

	// proxyAddress is a SOCKS5 proxy in "host:port" form.
	proxyAddress string
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithHeaders adds request headers sent with every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithCookie sets a raw Cookie header sent with every request.
func WithCookie(cookie string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.cookie = cookie
	}
}

// WithMaxBodySize limits how many body bytes are read per response.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRateLimiter throttles requests per host.
func WithRateLimiter(l *HostLimiter) HTTPOption {
	return func(f *HTTPFetcher) {
		f.limiter = l
	}
}

// WithSOCKS5Proxy routes requests through a SOCKS5 proxy at "host:port".
func WithSOCKS5Proxy(address string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.proxyAddress = address
	}
}

// WithHTTPClient replaces the underlying client. Timeout and proxy
// options are ignored when a client is supplied.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...HTTPOption) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
		if f.proxyAddress != "" {
			dialer, err := proxy.SOCKS5("tcp", f.proxyAddress, nil, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
			}
			transport.Proxy = nil
			transport.DialContext = contextDialer(dialer)
		}
		f.client = &http.Client{
			Timeout:   f.timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return f, nil
}

// contextDialer adapts a proxy.Dialer to the DialContext signature.
func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// Fetch performs a GET request for pageURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	if f.limiter != nil {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, &TransportError{URL: pageURL, Err: err}
		}
		if err := f.limiter.Wait(ctx, u.Host); err != nil {
			return nil, &TransportError{URL: pageURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &TransportError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: pageURL, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	return &Response{
		StatusCode:   resp.StatusCode,
		ContentType:  contentType,
		Body:         decodeBody(raw, contentType),
		LastModified: parseLastModified(resp.Header.Get("Last-Modified")),
	}, nil
}

// decodeBody converts raw bytes to UTF-8 text.
// Undecodable input is returned unchanged.
func decodeBody(raw []byte, contentType string) string {
	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return string(raw)
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(raw), enc.NewDecoder()))
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
