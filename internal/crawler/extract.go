package crawler

import (
	"iter"
	"regexp"
)

// hrefRegex matches href attributes loosely, quoted or not.
//
// Design decision: We scan with a permissive regex rather than a full HTML
// parser. False positives from malformed markup are cheap because every
// candidate is normalized and scope-checked before it is scheduled.
var hrefRegex = regexp.MustCompile(`(?i)href\s*=\s*["']?([^\s"'<>]+)`)

// ExtractLinks returns the raw href targets found in an HTML body.
// Links are yielded lazily in document order; duplicates are not removed.
func ExtractLinks(body string) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := body
		for {
			loc := hrefRegex.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			if !yield(rest[loc[2]:loc[3]]) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}
