package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrNoTarget is returned when no root URL is given.
	ErrNoTarget = errors.New("no target specified: provide the root URL to crawl")

	// ErrInvalidConcurrency is returned when max concurrency is below 1.
	ErrInvalidConcurrency = errors.New("invalid max concurrency: must be at least 1")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	// Use 0 to disable rate limiting.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidChangeFreq is returned for a change frequency the sitemap
	// protocol does not define.
	ErrInvalidChangeFreq = errors.New("invalid changefreq: must be one of always, hourly, daily, weekly, monthly, yearly, never")

	// ErrInvalidPriority is returned when the priority is outside 0.0-1.0.
	ErrInvalidPriority = errors.New("invalid priority: must be between 0.0 and 1.0")

	// ErrInvalidReportFormat is returned for an unknown --report value.
	ErrInvalidReportFormat = errors.New("invalid report format: must be text, json or markdown")

	// ErrCheckNeedsFile is returned when --check is combined with stdout output.
	ErrCheckNeedsFile = errors.New("--check requires an output file")
)
