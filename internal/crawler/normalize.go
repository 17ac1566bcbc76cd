package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedURL is returned when a root or candidate URL cannot be parsed.
// A malformed root aborts the crawl; a malformed candidate is dropped.
var ErrMalformedURL = errors.New("malformed URL")

// Normalize resolves raw against base and returns its canonical form.
//
// The canonical form is absolute, carries no fragment, and its path always
// ends with a slash. A query string is kept unchanged after the path.
// Two URLs that normalize to the same string are the same crawl target.
func Normalize(raw, base string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %w", ErrMalformedURL, base, err)
	}
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrMalformedURL, raw, err)
	}

	u := baseURL.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}

	return u.String(), nil
}

// normalizeRoot normalizes the crawl root and insists on an absolute
// http(s) URL with a host, since every result must share its prefix.
func normalizeRoot(root string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(root))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrMalformedURL, root, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q: scheme must be http or https", ErrMalformedURL, root)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q: missing host", ErrMalformedURL, root)
	}
	return Normalize(root, root)
}
