package sitemap

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"
)

// ErrScopeViolation is returned when an entry location carries its own
// scheme or host. Locations are paths; the domain is supplied separately.
var ErrScopeViolation = errors.New("location contains scheme or host")

// Protocol values for Sitemap.Protocol.
const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"

	// ProtocolAuto uses the scheme of the request being served.
	ProtocolAuto = "auto"
)

// Source is a finite sequence of items, produced eagerly or incrementally.
// A non-nil error ends the sequence.
type Source[T any] = iter.Seq2[T, error]

// FromSlice returns a Source over an already materialized list.
func FromSlice[T any](items []T) Source[T] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// FromSeq returns a Source over a generator.
func FromSeq[T any](seq iter.Seq[T]) Source[T] {
	return func(yield func(T, error) bool) {
		for item := range seq {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// FromFunc returns a Source that calls load on first iteration, for items
// that must be fetched from a database or a remote service.
func FromFunc[T any](ctx context.Context, load func(context.Context) ([]T, error)) Source[T] {
	return func(yield func(T, error) bool) {
		items, err := load(ctx)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Sitemap describes a section of a sitemap built from application data.
// Embed Defaults to get the optional methods.
type Sitemap[T any] interface {
	// Items returns the items to list.
	Items(ctx context.Context) Source[T]

	// Location returns the path of item, e.g. "/articles/42". It must not
	// contain a scheme or host.
	Location(item T) string

	// LastMod returns the last modification time. Zero omits the field.
	LastMod(item T) time.Time

	// ChangeFreq returns the change frequency. Empty omits the field.
	ChangeFreq(item T) string

	// Priority returns the priority of item.
	Priority(item T) float64

	// Protocol returns "http", "https" or "auto".
	Protocol() string
}

// Defaults implements the optional Sitemap methods: no lastmod, no
// changefreq, priority 0.5, plain http.
type Defaults[T any] struct{}

// LastMod returns the zero time.
func (Defaults[T]) LastMod(T) time.Time { return time.Time{} }

// ChangeFreq returns "".
func (Defaults[T]) ChangeFreq(T) string { return "" }

// Priority returns DefaultPriority.
func (Defaults[T]) Priority(T) float64 { return DefaultPriority }

// Protocol returns ProtocolHTTP.
func (Defaults[T]) Protocol() string { return ProtocolHTTP }

// Request carries what entry generation needs to know about the request
// being served. It is passed explicitly wherever it is needed.
type Request struct {
	// Scheme is "http" or "https".
	Scheme string

	// Host is the Host header of the request.
	Host string
}

// Provider yields ready-to-render entries. Use FromSitemap to obtain one
// from a Sitemap.
type Provider interface {
	Entries(ctx context.Context, req Request, domain string) iter.Seq2[Entry, error]
}

type sitemapProvider[T any] struct {
	sitemap Sitemap[T]
}

// FromSitemap adapts s to a Provider.
func FromSitemap[T any](s Sitemap[T]) Provider {
	return sitemapProvider[T]{sitemap: s}
}

func (p sitemapProvider[T]) Entries(ctx context.Context, req Request, domain string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for item, err := range p.sitemap.Items(ctx) {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			entry, err := BuildEntry(p.sitemap, item, req, domain)
			if !yield(entry, err) || err != nil {
				return
			}
		}
	}
}

// BuildEntry computes the entry of one item. It fails with
// ErrScopeViolation when the item location is an absolute URL.
func BuildEntry[T any](s Sitemap[T], item T, req Request, domain string) (Entry, error) {
	protocol := s.Protocol()
	if protocol == ProtocolAuto {
		protocol = req.Scheme
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	location := s.Location(item)
	ref, err := url.Parse(location)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid location %q: %w", location, err)
	}
	if ref.Scheme != "" || ref.Host != "" {
		return Entry{}, fmt.Errorf("%w: %s", ErrScopeViolation, location)
	}

	base := &url.URL{Scheme: protocol, Host: domain, Path: "/"}
	return Entry{
		Loc:        base.ResolveReference(ref).String(),
		LastMod:    s.LastMod(item),
		ChangeFreq: s.ChangeFreq(item),
		Priority:   s.Priority(item),
	}, nil
}

// Generate renders every entry of providers as a sitemap document, one
// field per line. The first error stops generation; nothing is returned
// alongside it.
func Generate(ctx context.Context, req Request, domain string, providers ...Provider) ([]byte, error) {
	lines := []string{xmlDeclaration, urlsetOpen}

	for _, p := range providers {
		for entry, err := range p.Entries(ctx, req, domain) {
			if err != nil {
				return nil, err
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lines = append(lines, indent+"<url>")
			for _, f := range entry.fields() {
				lines = append(lines, indent+indent+"<"+f[0]+">"+f[1]+"</"+f[0]+">")
			}
			lines = append(lines, indent+"</url>")
		}
	}

	lines = append(lines, urlsetClose, "")
	return []byte(strings.Join(lines, "\n")), nil
}
