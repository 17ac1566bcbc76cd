package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemaps"

	// DefaultOutput is the sitemap file written when --output is not given.
	DefaultOutput = "sitemap.xml"

	// StdoutOutput writes the sitemap to standard output.
	StdoutOutput = "-"

	// DefaultMaxConcurrency is the number of URLs processed at once.
	// Local applications handle this easily; lower it for remote sites.
	DefaultMaxConcurrency = 100

	// DefaultTimeout applies to each request, not the whole crawl.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the crawler in server logs.
	DefaultUserAgent = "sitemaps/1.0 (+https://github.com/nao1215/sitemaps)"

	// DefaultMaxBodySize limits the bytes read from each response.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultChangeFreq is the change frequency of detailed entries.
	DefaultChangeFreq = "daily"

	// DefaultPriority is the priority of detailed entries.
	DefaultPriority = 0.5

	// DefaultRateBurst is the burst size when rate limiting is enabled.
	DefaultRateBurst = 1
)

// Report formats accepted by --report.
const (
	ReportNone     = ""
	ReportText     = "text"
	ReportJSON     = "json"
	ReportMarkdown = "markdown"
)

// changeFreqs mirrors the values allowed by the sitemap protocol.
var changeFreqs = []string{"", "always", "hourly", "daily", "weekly", "monthly", "yearly", "never"}

// Config holds all options of a crawl invocation.
// It is populated from CLI flags and the configuration file, then passed
// explicitly to the components that need it.
type Config struct {
	// Target is the root URL of the crawl. Only URLs under it are listed.
	Target string

	// Output is the sitemap file path, or "-" for standard output.
	Output string

	// IgnorePrefixes are path prefixes excluded from the crawl, resolved
	// against Target (e.g. "/admin").
	IgnorePrefixes []string

	// MaxConcurrency is the maximum number of fetches in flight.
	MaxConcurrency int

	// Check compares the computed sitemap with Output instead of writing it.
	Check bool

	// ServeDir crawls a directory through an in-process file server instead
	// of the network. Target still provides the scheme, host and base path.
	ServeDir string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// RateLimit is the maximum number of requests per second to one host.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size used with RateLimit.
	RateBurst int

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// Detailed emits lastmod, changefreq and priority for every URL.
	Detailed bool

	// ChangeFreq is the change frequency of detailed entries.
	ChangeFreq string

	// Priority is the priority of detailed entries.
	Priority float64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the configuration file. Empty means search
	// .sitemaps in the current and home directories.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// History records the finished run in the history database.
	History bool

	// DBDir is the directory of the history database.
	DBDir string

	// ReportFormat selects a crawl summary: "", "text", "json" or "markdown".
	ReportFormat string

	// ReportFile receives the summary. Empty means standard error.
	ReportFile string

	// MetricsFile receives Prometheus metrics in text exposition format.
	MetricsFile string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Output:         DefaultOutput,
		MaxConcurrency: DefaultMaxConcurrency,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		RateBurst:      DefaultRateBurst,
		ChangeFreq:     DefaultChangeFreq,
		Priority:       DefaultPriority,
		DBDir:          XDGDataDir(),
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/sitemaps.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/sitemaps.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplySite merges site settings into c. Ignore prefixes are appended;
// concurrency and rate limit override only when c still has defaults.
func (c *Config) ApplySite(site SiteConfig) {
	c.IgnorePrefixes = append(c.IgnorePrefixes, site.Ignore...)
	if site.MaxConcurrency > 0 && c.MaxConcurrency == DefaultMaxConcurrency {
		c.MaxConcurrency = site.MaxConcurrency
	}
	if site.RateLimit > 0 && c.RateLimit == 0 {
		c.RateLimit = site.RateLimit
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Target == "" {
		return ErrNoTarget
	}
	if c.MaxConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if !slices.Contains(changeFreqs, c.ChangeFreq) {
		return ErrInvalidChangeFreq
	}
	if c.Priority < 0 || c.Priority > 1 {
		return ErrInvalidPriority
	}
	switch c.ReportFormat {
	case ReportNone, ReportText, ReportJSON, ReportMarkdown:
	default:
		return ErrInvalidReportFormat
	}
	if c.Check && (c.Output == "" || c.Output == StdoutOutput) {
		return ErrCheckNeedsFile
	}
	return nil
}
