package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemaps/internal/config"
	"github.com/nao1215/sitemaps/internal/crawler"
	"github.com/nao1215/sitemaps/internal/fetch"
	"github.com/nao1215/sitemaps/internal/history"
	"github.com/nao1215/sitemaps/internal/metrics"
	"github.com/nao1215/sitemaps/internal/report"
	"github.com/nao1215/sitemaps/internal/sitemap"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <root-url>",
		Short: "Crawl a site and write its sitemap",
		Long: `Crawl fetches the root URL, follows every link that stays under it and
writes the URLs that answered with 200 OK as a sitemap.

Examples:
  # Crawl a local development server
  sitemaps crawl http://localhost:8000/

  # Crawl only the documentation and skip drafts
  sitemaps crawl -I /docs/drafts -o docs-sitemap.xml https://example.com/docs/

  # Fail in CI when the committed sitemap is out of date
  sitemaps crawl --check -o public/sitemap.xml http://localhost:8000/

  # Crawl a directory of static files without starting a server
  sitemaps crawl --serve-dir ./public https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd)

	cmd.Flags().StringP("output", "o", config.DefaultOutput,
		`Sitemap file to write, "-" for standard output`)
	cmd.Flags().Bool("check", false,
		"Compare the computed sitemap with --output instead of writing it")
	cmd.Flags().Bool("detailed", false,
		"Add lastmod, changefreq and priority to every entry")
	cmd.Flags().String("changefreq", config.DefaultChangeFreq,
		"Change frequency used with --detailed")
	cmd.Flags().Float64("priority", config.DefaultPriority,
		"Priority used with --detailed")
	cmd.Flags().Bool("history", false,
		"Record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().String("report", "",
		"Write a crawl summary: text, json or markdown")
	cmd.Flags().String("report-file", "",
		"Write the summary to this file instead of standard error")
	cmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics of the crawl to this file")

	return cmd
}

// addCrawlFlags registers the flags shared by crawl and serve.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("ignore-path-prefix", "I", nil,
		"Path prefix to exclude from the crawl (repeatable)")
	cmd.Flags().IntP("max-concurrency", "m", config.DefaultMaxConcurrency,
		"Maximum number of requests in flight")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with each request")
	cmd.Flags().Float64("rate-limit", 0,
		"Maximum requests per second to the site (0 disables)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address, e.g. 127.0.0.1:1080")
	cmd.Flags().String("serve-dir", "",
		"Crawl this directory through an in-process file server")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemaps in current or home directory)")
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildCrawlConfig creates a Config from the shared crawl flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.Target = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error
	if cfg.IgnorePrefixes, err = flags.GetStringArray("ignore-path-prefix"); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = flags.GetInt("max-concurrency"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate-limit"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.ServeDir, err = flags.GetString("serve-dir"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// Flags registered only on crawl.
	if flags.Lookup("output") != nil {
		if cfg.Output, err = flags.GetString("output"); err != nil {
			return nil, err
		}
		if cfg.Check, err = flags.GetBool("check"); err != nil {
			return nil, err
		}
		if cfg.Detailed, err = flags.GetBool("detailed"); err != nil {
			return nil, err
		}
		if cfg.ChangeFreq, err = flags.GetString("changefreq"); err != nil {
			return nil, err
		}
		if cfg.Priority, err = flags.GetFloat64("priority"); err != nil {
			return nil, err
		}
		if cfg.History, err = flags.GetBool("history"); err != nil {
			return nil, err
		}
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return nil, err
		}
		if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
			return nil, err
		}
		if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
			return nil, err
		}
		if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
			return nil, err
		}
	}

	if err := loadSiteConfigs(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSiteConfigs reads the configuration file. An explicitly given file
// must exist; a missing default file means no site settings.
func loadSiteConfigs(cfg *config.Config) error {
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = cf
	case cfg.ConfigFilePath != "":
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}
	return nil
}

// withSiteConfig returns a copy of cfg with the settings of the target
// host merged in, along with those settings. cfg itself is not modified.
func withSiteConfig(cfg *config.Config) (*config.Config, config.SiteConfig) {
	effective := *cfg
	effective.IgnorePrefixes = slices.Clone(cfg.IgnorePrefixes)

	var site config.SiteConfig
	if cfg.SiteConfigs != nil {
		if u, err := url.Parse(cfg.Target); err == nil {
			site = cfg.SiteConfigs.GetSiteConfig(u.Host)
		}
	}
	effective.ApplySite(site)
	return &effective, site
}

// newFetcher builds the network fetcher, or an in-process one when a
// directory is served.
func newFetcher(cfg *config.Config, site config.SiteConfig) (fetch.Fetcher, error) {
	headers := make(map[string]string, len(site.Headers)+1)
	for k, v := range site.Headers {
		headers[k] = v
	}

	if cfg.ServeDir != "" {
		info, err := os.Stat(cfg.ServeDir)
		if err != nil {
			return nil, fmt.Errorf("cannot serve directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("cannot serve directory: %s is not a directory", cfg.ServeDir)
		}
		if site.Cookie != "" {
			headers["Cookie"] = site.Cookie
		}
		return fetch.NewHandlerFetcher(dirHandler(cfg.ServeDir), headers), nil
	}

	return fetch.NewHTTPFetcher(
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithHeaders(headers),
		fetch.WithCookie(site.Cookie),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithRateLimiter(fetch.NewHostLimiter(cfg.RateLimit, cfg.RateBurst)),
		fetch.WithSOCKS5Proxy(cfg.ProxyAddress),
	)
}

// dirHandler serves files below root. Unlike http.FileServer it does not
// redirect "/page.html/" to "/page.html", because crawled URLs always
// carry a trailing slash and redirects are not followed.
func dirHandler(root string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		http.ServeFile(w, r, name)
	})
}

// crawlSite runs the engine against cfg.Target with the site settings
// applied.
func crawlSite(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer crawler.Observer) (*crawler.Result, error) {
	cfg, site := withSiteConfig(cfg)
	fetcher, err := newFetcher(cfg, site)
	if err != nil {
		return nil, err
	}

	opts := []crawler.Option{
		crawler.WithMaxConcurrency(cfg.MaxConcurrency),
		crawler.WithLogger(logger),
	}
	if observer != nil {
		opts = append(opts, crawler.WithObserver(observer))
	}

	logger.Debug("crawl settings",
		"target", cfg.Target,
		"ignore", cfg.IgnorePrefixes,
		"cookie", site.Cookie,
		"rateLimit", cfg.RateLimit,
		"serveDir", cfg.ServeDir,
	)
	return crawler.NewEngine(fetcher, opts...).Crawl(ctx, cfg.Target, cfg.IgnorePrefixes)
}

// renderSitemap serializes the result in the one-line form.
func renderSitemap(cfg *config.Config, result *crawler.Result) string {
	if !cfg.Detailed {
		return sitemap.Serialize(result.URLs, nil)
	}
	return sitemap.Serialize(result.URLs, sitemap.EntryTag(func(u string) sitemap.Entry {
		return sitemap.Entry{
			Loc:        u,
			LastMod:    result.Pages[u].LastModified,
			ChangeFreq: cfg.ChangeFreq,
			Priority:   cfg.Priority,
		}
	}))
}

// runCrawl crawls, then writes or checks the sitemap.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	collector := metrics.New()

	result, err := crawlSite(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	finishedAt := time.Now()
	xml := renderSitemap(cfg, result)

	if cfg.Check {
		if err := sitemap.Check(cfg.Output, xml); err != nil {
			var mismatch *sitemap.MismatchError
			if errors.As(err, &mismatch) {
				for _, line := range mismatch.Diff {
					fmt.Fprintln(stderr, line)
				}
			}
			return err
		}
		logger.Info("sitemap is up to date", "path", cfg.Output)
	} else if err := writeSitemap(cfg.Output, xml, stdout); err != nil {
		return err
	}

	var changed *bool
	if cfg.History {
		run, err := recordHistory(ctx, cfg.DBDir, result, finishedAt)
		if err != nil {
			return err
		}
		changed = &run.Changed
		logger.Info("recorded run", "id", run.ID, "changed", run.Changed)
	}

	if cfg.MetricsFile != "" {
		if err := collector.WriteFile(cfg.MetricsFile); err != nil {
			return err
		}
	}

	if cfg.ReportFormat != config.ReportNone {
		summary := report.NewSummary(result, finishedAt)
		summary.Version = getVersion()
		summary.Output = cfg.Output
		summary.MaxInFlight = collector.MaxInFlight()
		summary.Changed = changed
		if err := writeReport(cfg, summary, stderr); err != nil {
			return err
		}
	}
	return nil
}

// writeSitemap writes xml to path, or to stdout when path is "-".
func writeSitemap(path, xml string, stdout io.Writer) error {
	if path == config.StdoutOutput {
		_, err := io.WriteString(stdout, xml)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(xml), 0644); err != nil { //nolint:gosec // sitemaps are public files
		return fmt.Errorf("failed to write sitemap: %w", err)
	}
	return nil
}

func recordHistory(ctx context.Context, dbDir string, result *crawler.Result, at time.Time) (history.Run, error) {
	store, err := history.Open(dbDir, history.DefaultOptions())
	if err != nil {
		return history.Run{}, err
	}
	defer store.Close()
	return store.Record(ctx, result, at)
}

// writeReport writes the summary to the report file or stderr.
func writeReport(cfg *config.Config, summary *report.Summary, stderr io.Writer) error {
	out := stderr
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.Create(cfg.ReportFile) //nolint:gosec // User-provided report path is intentional
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := report.NewWriter(cfg.ReportFormat, out)
	if err != nil {
		return err
	}
	if _, err := w.Write(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
