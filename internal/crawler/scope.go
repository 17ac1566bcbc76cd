package crawler

import (
	"strings"
	"sync"
)

// Scope is the immutable configuration of one crawl run.
type Scope struct {
	// Root is the normalized root URL. Every crawled URL must start with it.
	Root string

	// Ignored holds normalized URL prefixes excluded from the crawl.
	Ignored []string

	// Limit is the maximum number of fetches in flight at once.
	Limit int
}

// NewScope normalizes root and resolves every ignore entry against it.
// Ignore entries are usually path prefixes such as "/private", which
// become "http://host/private/".
func NewScope(root string, ignore []string, limit int) (Scope, error) {
	normalized, err := normalizeRoot(root)
	if err != nil {
		return Scope{}, err
	}

	ignored := make([]string, 0, len(ignore))
	for _, prefix := range ignore {
		p, err := Normalize(prefix, normalized)
		if err != nil {
			return Scope{}, err
		}
		ignored = append(ignored, p)
	}

	return Scope{Root: normalized, Ignored: ignored, Limit: limit}, nil
}

// Contains reports whether a normalized URL lies under the root prefix
// and outside every ignored prefix. It does not consult discovery state.
func (s Scope) Contains(u string) bool {
	if !strings.HasPrefix(u, s.Root) {
		return false
	}
	for _, prefix := range s.Ignored {
		if strings.HasPrefix(u, prefix) {
			return false
		}
	}
	return true
}

// discoverySet records every URL ever scheduled in a run.
type discoverySet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func newDiscoverySet() *discoverySet {
	return &discoverySet{urls: make(map[string]struct{})}
}

// claim inserts u and reports whether this caller inserted it.
// Of two racing callers exactly one gets true.
func (d *discoverySet) claim(u string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.urls[u]; ok {
		return false
	}
	d.urls[u] = struct{}{}
	return true
}

func (d *discoverySet) contains(u string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.urls[u]
	return ok
}

func (d *discoverySet) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// resultSet collects pages that were fetched with status 200.
type resultSet struct {
	mu    sync.Mutex
	pages map[string]Page
}

func newResultSet() *resultSet {
	return &resultSet{pages: make(map[string]Page)}
}

func (r *resultSet) add(p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[p.URL] = p
}

// snapshot returns a copy of the collected pages.
func (r *resultSet) snapshot() map[string]Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Page, len(r.pages))
	for k, v := range r.pages {
		out[k] = v
	}
	return out
}
