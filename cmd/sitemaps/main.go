// Package main provides the entry point for the sitemaps CLI.
//
// sitemaps crawls a web site from a root URL and writes a sitemap.xml
// listing every page reachable under that root.
//
// Usage:
//
//	sitemaps crawl http://localhost:8000/
//	sitemaps crawl --check -o public/sitemap.xml https://example.com/docs/
//	sitemaps serve --addr :8080 http://localhost:8000/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
