package crawler

import (
	"slices"
	"testing"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "double quotes",
			body: `<a href="/a">A</a>`,
			want: []string{"/a"},
		},
		{
			name: "single quotes and unquoted",
			body: `<a href='/b'>B</a><a href=/c>C</a>`,
			want: []string{"/b", "/c"},
		},
		{
			name: "case insensitive with spaces",
			body: `<A HREF = "/d">D</A>`,
			want: []string{"/d"},
		},
		{
			name: "link and area elements",
			body: `<link rel="stylesheet" href="/style.css"><area href="/map">`,
			want: []string{"/style.css", "/map"},
		},
		{
			name: "value stops at whitespace",
			body: `<a href=/e title=x>E</a>`,
			want: []string{"/e"},
		},
		{
			name: "query and fragment kept",
			body: `<a href="/f?x=1#top">F</a>`,
			want: []string{"/f?x=1#top"},
		},
		{
			name: "empty value is not a link",
			body: `<a href="">none</a>`,
			want: nil,
		},
		{
			name: "no links",
			body: `<p>plain text</p>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := slices.Collect(ExtractLinks(tt.body))
			if !slices.Equal(got, tt.want) {
				t.Errorf("ExtractLinks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractLinksStopsEarly(t *testing.T) {
	t.Parallel()

	var got []string
	for link := range ExtractLinks(`<a href="/1"><a href="/2"><a href="/3">`) {
		got = append(got, link)
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"/1", "/2"}) {
		t.Errorf("got %v", got)
	}
}

func TestPageTitle(t *testing.T) {
	t.Parallel()

	if got := pageTitle(`<html><head><title>  Hello  </title></head></html>`); got != "Hello" {
		t.Errorf("pageTitle() = %q, want Hello", got)
	}
	if got := pageTitle(`<p>no title</p>`); got != "" {
		t.Errorf("pageTitle() = %q, want empty", got)
	}
}
