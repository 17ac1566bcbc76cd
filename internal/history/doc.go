// Package history keeps a record of past crawls in SQLite.
//
// Each finished crawl becomes a run: the root URL, when it happened, how
// many URLs it found and a SHA3-256 digest of the sorted URL list. The
// digest makes it cheap to tell whether a site's shape changed between
// two runs without diffing the page tables.
//
// Design decision: the database lives in the XDG data directory and is
// only written when the user asks for it with --history. A crawl never
// reads history back, so two runs of the same crawl always produce the
// same sitemap regardless of what is stored here.
package history
