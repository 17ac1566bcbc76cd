package config

import (
	"maps"
	"strings"
)

// SiteConfig holds settings for one host.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Ignore lists path prefixes excluded from the crawl.
	Ignore []string `yaml:"ignore,omitempty"`

	// MaxConcurrency overrides the default concurrency for this site.
	MaxConcurrency int `yaml:"maxConcurrency,omitempty"`

	// RateLimit is the maximum number of requests per second.
	RateLimit float64 `yaml:"rateLimit,omitempty"`
}

// File represents the structure of the .sitemaps configuration file.
type File struct {
	// Sites maps a host (e.g. "example.com" or "localhost:8000") to its
	// configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// Ignore prefixes from both are combined.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)
	result.Ignore = append([]string(nil), cf.Defaults.Ignore...)

	siteConfig, ok := cf.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	result.Ignore = append(result.Ignore, siteConfig.Ignore...)
	if siteConfig.MaxConcurrency != 0 {
		result.MaxConcurrency = siteConfig.MaxConcurrency
	}
	if siteConfig.RateLimit != 0 {
		result.RateLimit = siteConfig.RateLimit
	}

	return result
}
