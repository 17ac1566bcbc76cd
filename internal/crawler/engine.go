package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitemaps/internal/fetch"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrency is the default cap on simultaneous fetches.
const DefaultMaxConcurrency = 100

var (
	// ErrRootUnreachable is returned when the root URL cannot be fetched at
	// all. Failures of other URLs only remove them from the result.
	ErrRootUnreachable = errors.New("root URL unreachable")

	// ErrInvalidConcurrency is returned for a concurrency limit below 1.
	ErrInvalidConcurrency = errors.New("concurrency limit must be at least 1")
)

// CrawlError is returned when a crawl fails as a whole. No partial results
// accompany it.
type CrawlError struct {
	// Op is the stage that failed: "scope", "fetch" or "crawl".
	Op string

	// URL is the root URL of the failed crawl.
	URL string

	// Err is the underlying cause.
	Err error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl %s: %s: %v", e.URL, e.Op, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// Page describes one URL that made it into the result.
type Page struct {
	// URL is the normalized page URL.
	URL string

	// ContentType is the Content-Type header of the response.
	ContentType string

	// LastModified comes from the Last-Modified header, zero if absent.
	LastModified time.Time

	// Title is the HTML title. Empty for non-HTML pages.
	Title string
}

// Stats counts what happened during a crawl.
type Stats struct {
	// Discovered is the number of URLs that were ever scheduled.
	Discovered int

	// Fetched is the number of fetches that returned a response.
	Fetched int

	// Results is the number of URLs in the result.
	Results int

	// TransportErrors counts fetches that produced no response.
	TransportErrors int

	// UnexpectedStatus counts responses with a status other than 200.
	UnexpectedStatus int

	// NonHTML counts results that were not scanned for links.
	NonHTML int

	// Malformed counts link candidates that could not be parsed.
	Malformed int

	// Elapsed is the wall-clock duration of the crawl.
	Elapsed time.Duration
}

// Result is the outcome of a successful crawl.
type Result struct {
	// Root is the normalized root URL.
	Root string

	// URLs lists every result URL, sorted ascending, without duplicates.
	URLs []string

	// Pages maps each result URL to its metadata.
	Pages map[string]Page

	// Stats summarizes the crawl.
	Stats Stats
}

// Engine crawls a site through a Fetcher.
//
// An Engine holds no per-crawl state, so one Engine may run any number of
// crawls, including concurrently.
type Engine struct {
	// fetcher retrieves pages.
	fetcher fetch.Fetcher

	// limit caps simultaneous fetches.
	limit int

	// logger receives per-URL diagnostics at debug level.
	logger *slog.Logger

	// observer is notified of fetch lifecycle events.
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxConcurrency caps the number of fetches in flight.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		e.limit = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver registers an Observer, e.g. for metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an Engine using fetcher.
func NewEngine(fetcher fetch.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		limit:    DefaultMaxConcurrency,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Crawl discovers every page reachable from root without leaving its
// prefix or entering an ignored prefix, and returns the sorted URL list.
func Crawl(ctx context.Context, root string, ignore []string, fetcher fetch.Fetcher, limit int) ([]string, error) {
	result, err := NewEngine(fetcher, WithMaxConcurrency(limit)).Crawl(ctx, root, ignore)
	if err != nil {
		return nil, err
	}
	return result.URLs, nil
}

// Crawl runs one crawl from root. Ignore entries are resolved against root.
//
// The crawl returns when every scheduled fetch, including those scheduled
// by other fetches, has finished. Individual fetch failures only drop the
// URL from the result. The crawl fails as a whole when the root is
// malformed or unreachable, or when ctx is cancelled.
func (e *Engine) Crawl(ctx context.Context, root string, ignore []string) (*Result, error) {
	if e.limit < 1 {
		return nil, &CrawlError{Op: "scope", URL: root, Err: ErrInvalidConcurrency}
	}
	scope, err := NewScope(root, ignore, e.limit)
	if err != nil {
		return nil, &CrawlError{Op: "scope", URL: root, Err: err}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	r := &run{
		engine:     e,
		scope:      scope,
		group:      g,
		sem:        semaphore.NewWeighted(int64(scope.Limit)),
		discovered: newDiscoverySet(),
		results:    newResultSet(),
	}

	e.logger.Info("starting crawl",
		"root", scope.Root,
		"ignored", scope.Ignored,
		"maxConcurrency", scope.Limit,
	)

	r.schedule(gctx, scope.Root, true)

	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrRootUnreachable) {
			return nil, &CrawlError{Op: "fetch", URL: scope.Root, Err: err}
		}
		return nil, &CrawlError{Op: "crawl", URL: scope.Root, Err: err}
	}
	// Fetch failures caused by cancellation are absorbed like any other
	// failure, so check the parent context explicitly.
	if err := ctx.Err(); err != nil {
		return nil, &CrawlError{Op: "crawl", URL: scope.Root, Err: err}
	}

	pages := r.results.snapshot()
	urls := make([]string, 0, len(pages))
	for u := range pages {
		urls = append(urls, u)
	}
	slices.Sort(urls)

	stats := r.stats()
	stats.Results = len(urls)
	stats.Elapsed = time.Since(start)

	e.logger.Info("crawl complete",
		"root", scope.Root,
		"results", stats.Results,
		"discovered", stats.Discovered,
		"elapsed", stats.Elapsed,
	)

	return &Result{Root: scope.Root, URLs: urls, Pages: pages, Stats: stats}, nil
}

// run is the state of a single crawl.
type run struct {
	engine *Engine
	scope  Scope

	// group tracks every outstanding unit of work; Wait returns once the
	// whole fan-out tree has settled.
	group *errgroup.Group

	// sem caps the number of fetches in flight.
	sem *semaphore.Weighted

	discovered *discoverySet
	results    *resultSet

	fetched          atomic.Int64
	transportErrors  atomic.Int64
	unexpectedStatus atomic.Int64
	nonHTML          atomic.Int64
	malformed        atomic.Int64
}

// admit reports whether u is in scope and not yet discovered, claiming it
// in the same step. It returns true for exactly one caller per URL.
func (r *run) admit(u string) bool {
	return r.scope.Contains(u) && r.discovered.claim(u)
}

// schedule starts a unit of work for u if it is admitted.
func (r *run) schedule(ctx context.Context, u string, isRoot bool) {
	if !r.admit(u) {
		return
	}
	r.engine.observer.URLDiscovered(u)
	r.group.Go(func() error {
		return r.process(ctx, u, isRoot)
	})
}

// process fetches u, records it, and schedules its in-scope links.
func (r *run) process(ctx context.Context, u string, isRoot bool) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	logger := r.engine.logger
	r.engine.observer.FetchStarted(u)

	resp, err := r.engine.fetcher.Fetch(ctx, u)
	if err != nil {
		r.engine.observer.FetchFinished(u, OutcomeTransportError)
		r.transportErrors.Add(1)
		if isRoot && ctx.Err() == nil {
			return fmt.Errorf("%w: %w", ErrRootUnreachable, err)
		}
		logger.Debug("fetch failed", "url", u, "error", err)
		return nil
	}
	r.fetched.Add(1)

	if resp.StatusCode != http.StatusOK {
		r.engine.observer.FetchFinished(u, OutcomeUnexpectedStatus)
		r.unexpectedStatus.Add(1)
		logger.Debug("skipping page", "url", u, "status", resp.StatusCode, "error", fetch.ErrUnexpectedStatus)
		return nil
	}

	page := Page{
		URL:          u,
		ContentType:  resp.ContentType,
		LastModified: resp.LastModified,
	}

	if !resp.IsHTML() {
		r.engine.observer.FetchFinished(u, OutcomeNonHTML)
		r.nonHTML.Add(1)
		logger.Debug("recorded non-html page", "url", u, "contentType", resp.ContentType)
		r.results.add(page)
		return nil
	}

	for href := range ExtractLinks(resp.Body) {
		child, err := Normalize(href, u)
		if err != nil {
			r.malformed.Add(1)
			logger.Debug("dropping link", "url", u, "href", href, "error", err)
			continue
		}
		r.schedule(ctx, child, false)
	}

	page.Title = pageTitle(resp.Body)
	r.results.add(page)
	r.engine.observer.FetchFinished(u, OutcomePage)
	return nil
}

func (r *run) stats() Stats {
	return Stats{
		Discovered:       r.discovered.len(),
		Fetched:          int(r.fetched.Load()),
		TransportErrors:  int(r.transportErrors.Load()),
		UnexpectedStatus: int(r.unexpectedStatus.Load()),
		NonHTML:          int(r.nonHTML.Load()),
		Malformed:        int(r.malformed.Load()),
	}
}
