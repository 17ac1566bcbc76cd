package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemaps/internal/config"
	"github.com/nao1215/sitemaps/internal/crawler"
	"github.com/nao1215/sitemaps/internal/sitemap"
)

// defaultServeAddr is the listen address of the serve command.
const defaultServeAddr = "127.0.0.1:8080"

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <root-url>",
		Short: "Crawl a site and serve its sitemap over HTTP",
		Long: `Serve crawls the root URL once and serves the result at /sitemap.xml.
With --refresh the site is crawled again in the background at that
interval; requests always see the last completed crawl.

Examples:
  sitemaps serve http://localhost:8000/
  sitemaps serve --addr :9000 --refresh 10m https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runServeCmd,
	}

	addCrawlFlags(cmd)
	cmd.Flags().String("addr", defaultServeAddr, "Address to listen on")
	cmd.Flags().Duration("refresh", 0, "Crawl again at this interval (0 disables)")
	cmd.Flags().String("changefreq", "", "Change frequency of every entry")
	cmd.Flags().Float64("priority", config.DefaultPriority, "Priority of every entry")

	return cmd
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.ChangeFreq, err = cmd.Flags().GetString("changefreq"); err != nil {
		return err
	}
	if cfg.Priority, err = cmd.Flags().GetFloat64("priority"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	refresh, err := cmd.Flags().GetDuration("refresh")
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	site, err := newCrawledSitemap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if refresh > 0 {
		go site.refreshEvery(ctx, refresh)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving sitemap of %s at http://%s/sitemap.xml\n", site.root, ln.Addr())

	return serveSitemap(ctx, ln, site, logger)
}

// serveSitemap serves site on ln until ctx is done.
func serveSitemap(ctx context.Context, ln net.Listener, site *crawledSitemap, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/sitemap.xml", sitemap.NewHandler(site.domain(), logger, sitemap.FromSitemap[crawler.Page](site)))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// crawledSitemap lists the pages of the most recent crawl.
type crawledSitemap struct {
	sitemap.Defaults[crawler.Page]

	cfg    *config.Config
	logger *slog.Logger
	root   *url.URL

	mu    sync.RWMutex
	pages []crawler.Page
}

// newCrawledSitemap performs the initial crawl. Its failure is fatal.
func newCrawledSitemap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*crawledSitemap, error) {
	s := &crawledSitemap{cfg: cfg, logger: logger}
	result, err := s.crawl(ctx)
	if err != nil {
		return nil, err
	}
	root, err := url.Parse(result.Root)
	if err != nil {
		return nil, err
	}
	s.root = root
	return s, nil
}

func (s *crawledSitemap) crawl(ctx context.Context) (*crawler.Result, error) {
	result, err := crawlSite(ctx, s.cfg, s.logger, nil)
	if err != nil {
		return nil, err
	}
	pages := make([]crawler.Page, 0, len(result.URLs))
	for _, u := range result.URLs {
		pages = append(pages, result.Pages[u])
	}

	s.mu.Lock()
	s.pages = pages
	s.mu.Unlock()
	return result, nil
}

// refreshEvery recrawls until ctx is done. A failed recrawl keeps the
// previous pages.
func (s *crawledSitemap) refreshEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.crawl(ctx); err != nil {
				s.logger.Warn("recrawl failed, serving previous result", "error", err)
			}
		}
	}
}

func (s *crawledSitemap) domain() string {
	return s.root.Host
}

// Items implements sitemap.Sitemap.
func (s *crawledSitemap) Items(ctx context.Context) sitemap.Source[crawler.Page] {
	return sitemap.FromFunc(ctx, func(context.Context) ([]crawler.Page, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.pages, nil
	})
}

// Location implements sitemap.Sitemap. Crawled URLs share the root host,
// so only the path and query are kept.
func (s *crawledSitemap) Location(p crawler.Page) string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return "/"
	}
	return u.RequestURI()
}

// LastMod implements sitemap.Sitemap.
func (s *crawledSitemap) LastMod(p crawler.Page) time.Time {
	return p.LastModified
}

// ChangeFreq implements sitemap.Sitemap.
func (s *crawledSitemap) ChangeFreq(crawler.Page) string {
	return s.cfg.ChangeFreq
}

// Priority implements sitemap.Sitemap.
func (s *crawledSitemap) Priority(crawler.Page) float64 {
	return s.cfg.Priority
}

// Protocol implements sitemap.Sitemap.
func (s *crawledSitemap) Protocol() string {
	return s.root.Scheme
}
