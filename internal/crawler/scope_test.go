package crawler

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewScope(t *testing.T) {
	t.Parallel()

	scope, err := NewScope("http://x/docs", []string{"/docs/private", "drafts"}, 3)
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}
	if scope.Root != "http://x/docs/" {
		t.Errorf("Root = %q", scope.Root)
	}
	want := []string{"http://x/docs/private/", "http://x/docs/drafts/"}
	if len(scope.Ignored) != len(want) {
		t.Fatalf("Ignored = %v, want %v", scope.Ignored, want)
	}
	for i := range want {
		if scope.Ignored[i] != want[i] {
			t.Errorf("Ignored[%d] = %q, want %q", i, scope.Ignored[i], want[i])
		}
	}
	if scope.Limit != 3 {
		t.Errorf("Limit = %d", scope.Limit)
	}
}

func TestScopeContains(t *testing.T) {
	t.Parallel()

	scope, err := NewScope("http://x/docs/", []string{"/docs/private"}, 1)
	if err != nil {
		t.Fatalf("NewScope() error = %v", err)
	}

	tests := []struct {
		url  string
		want bool
	}{
		{url: "http://x/docs/", want: true},
		{url: "http://x/docs/guide/", want: true},
		{url: "http://x/docs/guide/?page=2", want: true},
		{url: "http://x/", want: false},
		{url: "http://x/blog/", want: false},
		{url: "https://x/docs/", want: false},
		{url: "http://y/docs/", want: false},
		{url: "http://x/docs/private/", want: false},
		{url: "http://x/docs/private/key/", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			if got := scope.Contains(tt.url); got != tt.want {
				t.Errorf("Contains(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestDiscoverySetClaim(t *testing.T) {
	t.Parallel()

	d := newDiscoverySet()
	var winners atomic.Int64
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.claim("http://x/race/") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("claim winners = %d, want exactly 1", winners.Load())
	}
	if !d.contains("http://x/race/") {
		t.Error("claimed URL not recorded")
	}
	if d.len() != 1 {
		t.Errorf("len() = %d, want 1", d.len())
	}
}

func TestResultSetSnapshot(t *testing.T) {
	t.Parallel()

	r := newResultSet()
	r.add(Page{URL: "http://x/"})
	r.add(Page{URL: "http://x/", Title: "again"})

	snap := r.snapshot()
	if len(snap) != 1 {
		t.Fatalf("len(snapshot) = %d, want 1", len(snap))
	}
	snap["http://x/other/"] = Page{}
	if len(r.snapshot()) != 1 {
		t.Error("snapshot shares storage with the set")
	}
}
