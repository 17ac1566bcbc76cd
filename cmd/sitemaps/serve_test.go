package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemaps/internal/config"
	"github.com/nao1215/sitemaps/internal/crawler"
	"github.com/nao1215/sitemaps/internal/log"
)

func newServeConfig(target string) *config.Config {
	cfg := config.NewConfig()
	cfg.Target = target
	cfg.SiteConfigs = &config.File{Sites: map[string]config.SiteConfig{}}
	cfg.ChangeFreq = "weekly"
	return cfg
}

func TestCrawledSitemap(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	root := srv.URL + "/"
	logger := log.NewLogger(io.Discard, false)

	site, err := newCrawledSitemap(context.Background(), newServeConfig(root), logger)
	if err != nil {
		t.Fatalf("newCrawledSitemap() error = %v", err)
	}

	if site.domain() != strings.TrimPrefix(srv.URL, "http://") {
		t.Errorf("domain() = %q", site.domain())
	}
	if site.Protocol() != "http" {
		t.Errorf("Protocol() = %q, want http", site.Protocol())
	}

	var locations []string
	for page, err := range site.Items(context.Background()) {
		if err != nil {
			t.Fatalf("Items() error = %v", err)
		}
		locations = append(locations, site.Location(page))
	}
	want := []string{"/", "/a/", "/b/?x=1", "/private/"}
	if strings.Join(locations, " ") != strings.Join(want, " ") {
		t.Errorf("locations = %v, want %v", locations, want)
	}

	if got := site.ChangeFreq(crawler.Page{}); got != "weekly" {
		t.Errorf("ChangeFreq() = %q, want weekly", got)
	}
}

func TestServeSitemap(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	root := srv.URL + "/"
	logger := log.NewLogger(io.Discard, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site, err := newCrawledSitemap(ctx, newServeConfig(root), logger)
	if err != nil {
		t.Fatalf("newCrawledSitemap() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- serveSitemap(ctx, ln, site, logger)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/sitemap.xml")
	if err != nil {
		t.Fatalf("GET sitemap: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{
		"        <loc>" + root + "</loc>",
		"        <loc>" + root + "b/?x=1</loc>",
		"        <changefreq>weekly</changefreq>",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("sitemap missing %q:\n%s", want, body)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serveSitemap() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRefreshKeepsPreviousPages(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	logger := log.NewLogger(io.Discard, false)

	site, err := newCrawledSitemap(context.Background(), newServeConfig(srv.URL+"/"), logger)
	if err != nil {
		t.Fatalf("newCrawledSitemap() error = %v", err)
	}
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		site.refreshEvery(ctx, 10*time.Millisecond)
		close(finished)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-finished

	site.mu.RLock()
	defer site.mu.RUnlock()
	if len(site.pages) != 4 {
		t.Errorf("pages = %d, want the 4 pages of the first crawl", len(site.pages))
	}
}
