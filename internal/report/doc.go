// Package report writes a summary of a finished crawl.
//
// Three formats are available:
//   - TextWriter: plain text for the terminal
//   - JSONWriter: structured output for scripts and CI
//   - MarkdownWriter: a document for pull requests and wikis
//
// Design decision: the sitemap itself never contains the summary. Reports
// go to their own destination (standard error by default) so that the
// sitemap output stays byte-for-byte reproducible.
package report
