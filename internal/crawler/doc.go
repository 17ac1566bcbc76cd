// Package crawler discovers the pages of a site for sitemap generation.
//
// # Architecture
//
// The Engine starts from a root URL, fetches it through a fetch.Fetcher,
// scans HTML bodies for href targets and schedules every link that stays
// under the root prefix. Each scheduled URL is one unit of work. Units are
// run as goroutines tracked by an errgroup, so the crawl ends exactly when
// the whole fan-out tree has settled, and a weighted semaphore caps the
// number of fetches in flight.
//
// Design decision: We keep the join and the concurrency cap as two separate
// primitives because:
//  1. A unit holding a fetch slot must be able to spawn children without
//     waiting for a free slot itself
//  2. Children block on the semaphore, never the parent, so fan-out cannot
//     deadlock against the cap
//
// # Components
//
//   - Normalize: canonical URL form (no fragment, trailing slash on path)
//   - Scope: root prefix and ignored prefixes for one crawl
//   - ExtractLinks: permissive href scanner
//   - Engine: scheduling, deduplication and completion
//
// # Usage
//
//	engine := crawler.NewEngine(fetcher, crawler.WithMaxConcurrency(10))
//	result, err := engine.Crawl(ctx, "https://example.com/", []string{"/admin"})
//
// # Failure handling
//
// A URL whose fetch fails or whose status is not 200 is left out of the
// result and never retried within the run. Only a malformed or unreachable
// root, or cancellation of the context, fails the crawl as a whole.
package crawler
