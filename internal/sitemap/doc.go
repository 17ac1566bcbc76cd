// Package sitemap renders and checks sitemap documents as defined by the
// sitemaps.org protocol.
//
// Two forms are produced:
//
//   - Serialize writes a sorted URL list with one <url> element per line.
//     Its output is byte-stable, which makes Check usable in CI to verify
//     that a committed sitemap is up to date.
//   - Generate renders application data described by Sitemap values, with
//     optional <lastmod> and <changefreq> and a <priority> per entry.
//     Handler serves that document over HTTP.
//
// Entry locations produced from a Sitemap must be paths. A location with a
// scheme or host is rejected with ErrScopeViolation, because it means the
// sitemap would list pages of a different site.
package sitemap
