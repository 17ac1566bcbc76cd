package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitemaps/internal/fetch"
)

// fakePage is one entry of a fakeSite.
type fakePage struct {
	status      int
	contentType string
	body        string
	broken      bool
}

// fakeSite serves pages from memory. Unknown URLs answer 404.
type fakeSite map[string]fakePage

func (s fakeSite) Fetch(_ context.Context, u string) (*fetch.Response, error) {
	page, ok := s[u]
	if !ok {
		return &fetch.Response{StatusCode: http.StatusNotFound, ContentType: "text/html"}, nil
	}
	if page.broken {
		return nil, &fetch.TransportError{URL: u, Err: errors.New("connection reset")}
	}
	status := page.status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := page.contentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	return &fetch.Response{StatusCode: status, ContentType: contentType, Body: page.body}, nil
}

func links(paths ...string) string {
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, p, p)
	}
	return b.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func crawlURLs(t *testing.T, site fetch.Fetcher, root string, ignore []string, limit int) []string {
	t.Helper()

	result, err := NewEngine(site, WithMaxConcurrency(limit), WithLogger(discardLogger())).
		Crawl(context.Background(), root, ignore)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	return result.URLs
}

func assertURLs(t *testing.T, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("URLs = %v, want %v", got, want)
	}
}

func TestCrawlScenarios(t *testing.T) {
	t.Parallel()

	const root = "http://x/"

	t.Run("root without links", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{root: {body: "<p>nothing here</p>"}}
		assertURLs(t, crawlURLs(t, site, root, nil, 4), []string{root})
	})

	t.Run("cycle between root and child", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			root:            {body: links("/child")},
			root + "child/": {body: links("/", "/child", "/child#again")},
		}
		assertURLs(t, crawlURLs(t, site, root, nil, 4), []string{root, root + "child/"})
	})

	t.Run("404 pages are excluded and not scanned", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			root:             {body: links("/gone", "/ok")},
			root + "gone/":   {status: http.StatusNotFound, body: links("/hidden")},
			root + "ok/":     {},
			root + "hidden/": {},
		}
		assertURLs(t, crawlURLs(t, site, root, nil, 4), []string{root, root + "ok/"})
	})

	t.Run("ignored prefix is never crawled", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			root:                     {body: links("/private", "/public")},
			root + "private/":        {body: links("/private/deeper", "/secret-linked")},
			root + "private/deeper/": {},
			root + "secret-linked/":  {},
			root + "public/":         {},
		}
		got := crawlURLs(t, site, root, []string{"/private"}, 4)
		assertURLs(t, got, []string{root, root + "public/"})
		for _, u := range got {
			if strings.HasPrefix(u, root+"private/") {
				t.Errorf("ignored URL in result: %s", u)
			}
		}
	})

	t.Run("non-HTML pages are listed but not scanned", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			root:                 {body: links("/report.pdf")},
			root + "report.pdf/": {contentType: "application/pdf", body: links("/from-pdf")},
			root + "from-pdf/":   {},
		}
		assertURLs(t, crawlURLs(t, site, root, nil, 4), []string{root, root + "report.pdf/"})
	})

	t.Run("transport errors drop the page", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			root:            {body: links("/flaky", "/fine")},
			root + "flaky/": {broken: true},
			root + "fine/":  {},
		}
		assertURLs(t, crawlURLs(t, site, root, nil, 4), []string{root, root + "fine/"})
	})

	t.Run("redirects are not followed", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			root:             {body: links("/moved")},
			root + "moved/":  {status: http.StatusMovedPermanently, body: links("/target")},
			root + "target/": {},
		}
		assertURLs(t, crawlURLs(t, site, root, nil, 4), []string{root})
	})

	t.Run("links outside the root are skipped", func(t *testing.T) {
		t.Parallel()

		docs := root + "docs/"
		site := fakeSite{
			docs:                   {body: links("/", "/blog", "https://x/docs/", "http://y/docs/", "guide")},
			docs + "guide/":        {body: links("../docs/guide?page=2")},
			docs + "guide/?page=2": {},
		}
		assertURLs(t, crawlURLs(t, site, docs, nil, 4), []string{docs, docs + "guide/", docs + "guide/?page=2"})
	})

	t.Run("malformed candidates are dropped", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{
			root:           {body: `<a href="%zz">bad</a>` + links("/good")},
			root + "good/": {},
		}
		result, err := NewEngine(site, WithLogger(discardLogger())).Crawl(context.Background(), root, nil)
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		assertURLs(t, result.URLs, []string{root, root + "good/"})
		if result.Stats.Malformed != 1 {
			t.Errorf("Malformed = %d, want 1", result.Stats.Malformed)
		}
	})
}

func TestCrawlRootFailures(t *testing.T) {
	t.Parallel()

	t.Run("unreachable root fails the crawl", func(t *testing.T) {
		t.Parallel()

		site := fakeSite{"http://x/": {broken: true}}
		result, err := NewEngine(site, WithLogger(discardLogger())).Crawl(context.Background(), "http://x/", nil)
		if result != nil {
			t.Errorf("result = %+v, want nil", result)
		}
		var crawlErr *CrawlError
		if !errors.As(err, &crawlErr) {
			t.Fatalf("error = %v, want *CrawlError", err)
		}
		if crawlErr.Op != "fetch" {
			t.Errorf("Op = %q, want fetch", crawlErr.Op)
		}
		if !errors.Is(err, ErrRootUnreachable) {
			t.Errorf("error = %v, want ErrRootUnreachable", err)
		}
	})

	t.Run("root with non-200 status yields an empty result", func(t *testing.T) {
		t.Parallel()

		urls := crawlURLs(t, fakeSite{}, "http://x/", nil, 1)
		if len(urls) != 0 {
			t.Errorf("URLs = %v, want empty", urls)
		}
	})

	t.Run("malformed root", func(t *testing.T) {
		t.Parallel()

		_, err := NewEngine(fakeSite{}).Crawl(context.Background(), "not a url", nil)
		if !errors.Is(err, ErrMalformedURL) {
			t.Errorf("error = %v, want ErrMalformedURL", err)
		}
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		t.Parallel()

		_, err := Crawl(context.Background(), "http://x/", nil, fakeSite{}, 0)
		if !errors.Is(err, ErrInvalidConcurrency) {
			t.Errorf("error = %v, want ErrInvalidConcurrency", err)
		}
	})
}

// wideSite builds a tree with fanout children per page and the given depth.
// Every page also links back to the root.
func wideSite(root string, fanout, depth int) (fakeSite, []string) {
	site := fakeSite{}
	var all []string
	var build func(prefix string, level int)
	build = func(prefix string, level int) {
		all = append(all, prefix)
		paths := []string{"/"}
		if level < depth {
			for i := range fanout {
				paths = append(paths, fmt.Sprintf("p%d", i))
				build(fmt.Sprintf("%sp%d/", prefix, i), level+1)
			}
		}
		site[prefix] = fakePage{body: links(paths...)}
	}
	build(root, 0)
	slices.Sort(all)
	return site, all
}

// gaugeFetcher records the highest number of simultaneous Fetch calls.
type gaugeFetcher struct {
	next    fetch.Fetcher
	current atomic.Int64
	peak    atomic.Int64
	calls   atomic.Int64
}

func (g *gaugeFetcher) Fetch(ctx context.Context, u string) (*fetch.Response, error) {
	n := g.current.Add(1)
	defer g.current.Add(-1)
	g.calls.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	return g.next.Fetch(ctx, u)
}

func TestCrawlConcurrencyBound(t *testing.T) {
	t.Parallel()

	const root = "http://x/"
	site, want := wideSite(root, 4, 3)

	for _, limit := range []int{1, 2, 3, 8, 32, len(want)} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			t.Parallel()

			g := &gaugeFetcher{next: site}
			got := crawlURLs(t, g, root, nil, limit)

			assertURLs(t, got, want)
			if peak := g.peak.Load(); peak > int64(limit) {
				t.Errorf("observed %d concurrent fetches, limit %d", peak, limit)
			}
			if calls := g.calls.Load(); calls != int64(len(want)) {
				t.Errorf("fetched %d times, want each of %d URLs once", calls, len(want))
			}
		})
	}
}

func TestCrawlTerminatesOnCycles(t *testing.T) {
	t.Parallel()

	const root = "http://x/"
	// A ring where every page also links to every other page.
	site := fakeSite{}
	var all []string
	for i := range 10 {
		u := fmt.Sprintf("%sn%d/", root, i)
		all = append(all, u)
	}
	site[root] = fakePage{body: links("/n0")}
	for i, u := range all {
		var paths []string
		for j := range all {
			paths = append(paths, fmt.Sprintf("/n%d", (i+j)%len(all)))
		}
		site[u] = fakePage{body: links(paths...)}
	}
	want := append([]string{root}, all...)
	slices.Sort(want)

	for limit := 1; limit <= len(want); limit++ {
		assertURLs(t, crawlURLs(t, site, root, nil, limit), want)
	}
}

func TestCrawlCancellation(t *testing.T) {
	t.Parallel()

	const root = "http://x/"
	started := make(chan struct{}, 16)
	fetcher := fetch.FetcherFunc(func(ctx context.Context, u string) (*fetch.Response, error) {
		if u == root {
			return &fetch.Response{StatusCode: http.StatusOK, ContentType: "text/html", Body: links("/a", "/b", "/c")}, nil
		}
		started <- struct{}{}
		<-ctx.Done()
		return nil, &fetch.TransportError{URL: u, Err: ctx.Err()}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	result, err := NewEngine(fetcher, WithLogger(discardLogger())).Crawl(ctx, root, nil)
	if result != nil {
		t.Errorf("result = %+v, want nil after cancellation", result)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) && crawlErr.Op != "crawl" {
		t.Errorf("Op = %q, want crawl", crawlErr.Op)
	}
}

func TestEngineConcurrentCrawls(t *testing.T) {
	t.Parallel()

	siteA, wantA := wideSite("http://a/", 3, 2)
	siteB, wantB := wideSite("http://b/", 2, 3)
	combined := fakeSite{}
	for k, v := range siteA {
		combined[k] = v
	}
	for k, v := range siteB {
		combined[k] = v
	}

	engine := NewEngine(combined, WithMaxConcurrency(3), WithLogger(discardLogger()))

	var wg sync.WaitGroup
	results := make([][]string, 6)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root := "http://a/"
			if i%2 == 1 {
				root = "http://b/"
			}
			res, err := engine.Crawl(context.Background(), root, nil)
			if err != nil {
				t.Errorf("Crawl(%s) error = %v", root, err)
				return
			}
			results[i] = res.URLs
		}()
	}
	wg.Wait()

	for i, got := range results {
		want := wantA
		if i%2 == 1 {
			want = wantB
		}
		assertURLs(t, got, want)
	}
}

// countingObserver counts crawl events.
type countingObserver struct {
	discovered atomic.Int64
	started    atomic.Int64
	finished   sync.Map
}

func (o *countingObserver) URLDiscovered(string) { o.discovered.Add(1) }
func (o *countingObserver) FetchStarted(string)  { o.started.Add(1) }
func (o *countingObserver) FetchFinished(_ string, outcome Outcome) {
	n, _ := o.finished.LoadOrStore(outcome, new(atomic.Int64))
	n.(*atomic.Int64).Add(1) //nolint:forcetypeassert // only *atomic.Int64 is stored
}

func (o *countingObserver) count(outcome Outcome) int64 {
	n, ok := o.finished.Load(outcome)
	if !ok {
		return 0
	}
	return n.(*atomic.Int64).Load() //nolint:forcetypeassert // only *atomic.Int64 is stored
}

func TestCrawlStatsAndObserver(t *testing.T) {
	t.Parallel()

	const root = "http://x/"
	site := fakeSite{
		root:           {body: links("/a", "/b", "/file", "/down", "/gone")},
		root + "a/":    {body: links("/b")},
		root + "b/":    {},
		root + "file/": {contentType: "image/png"},
		root + "down/": {broken: true},
	}
	obs := &countingObserver{}

	result, err := NewEngine(site, WithObserver(obs), WithLogger(discardLogger())).
		Crawl(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	want := Stats{
		Discovered:       6,
		Fetched:          5,
		Results:          4,
		TransportErrors:  1,
		UnexpectedStatus: 1,
		NonHTML:          1,
	}
	got := result.Stats
	got.Elapsed = 0
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}

	if obs.discovered.Load() != 6 || obs.started.Load() != 6 {
		t.Errorf("observer discovered=%d started=%d, want 6 and 6", obs.discovered.Load(), obs.started.Load())
	}
	if obs.count(OutcomePage) != 3 || obs.count(OutcomeNonHTML) != 1 ||
		obs.count(OutcomeTransportError) != 1 || obs.count(OutcomeUnexpectedStatus) != 1 {
		t.Errorf("outcome counts page=%d nonhtml=%d transport=%d status=%d",
			obs.count(OutcomePage), obs.count(OutcomeNonHTML),
			obs.count(OutcomeTransportError), obs.count(OutcomeUnexpectedStatus))
	}
}

func TestCrawlOverHTTP(t *testing.T) {
	t.Parallel()

	modified := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<title>Home</title>`+links("/about", "/about#team"))
		case "/about/":
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
			fmt.Fprint(w, `<title>About us</title>`+links("/"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fetcher, err := fetch.NewHTTPFetcher()
	if err != nil {
		t.Fatalf("NewHTTPFetcher() error = %v", err)
	}

	root := srv.URL + "/"
	urls, err := Crawl(context.Background(), srv.URL, nil, fetcher, 2)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, urls, []string{root, root + "about/"})

	result, err := NewEngine(fetcher, WithLogger(discardLogger())).Crawl(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	about := result.Pages[root+"about/"]
	if about.Title != "About us" {
		t.Errorf("Title = %q, want %q", about.Title, "About us")
	}
	if !about.LastModified.Equal(modified) {
		t.Errorf("LastModified = %v, want %v", about.LastModified, modified)
	}
	if result.Root != root {
		t.Errorf("Root = %q, want %q", result.Root, root)
	}
}
