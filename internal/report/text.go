package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const ruleWidth = 70

// TextWriter outputs a plain-text summary for terminals.
type TextWriter struct {
	baseWriter

	// listURLs appends every sitemap URL to the summary.
	listURLs bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithURLList includes the URL list in the output.
func WithURLList(list bool) TextWriterOption {
	return func(w *TextWriter) {
		w.listURLs = list
	}
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *TextWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeStats(&sb, summary)
	if w.listURLs {
		w.writeURLs(&sb, summary)
	}
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("SITEMAP CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Root:      %s\n", s.Root)
	if s.Output != "" {
		fmt.Fprintf(sb, "Output:    %s\n", s.Output)
	}
	fmt.Fprintf(sb, "Finished:  %s\n", s.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:   %s\n", time.Duration(s.ElapsedMillis)*time.Millisecond)
	if s.Changed != nil {
		status := "unchanged since last run"
		if *s.Changed {
			status = "CHANGED since last run"
		}
		fmt.Fprintf(sb, "History:   %s\n", status)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeStats(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\nSTATISTICS\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  URLs in sitemap:    %d\n", s.Stats.Results)
	fmt.Fprintf(sb, "  Discovered:         %d\n", s.Stats.Discovered)
	fmt.Fprintf(sb, "  Fetched:            %d\n", s.Stats.Fetched)
	fmt.Fprintf(sb, "  Non-HTML:           %d\n", s.Stats.NonHTML)
	fmt.Fprintf(sb, "  Unexpected status:  %d\n", s.Stats.UnexpectedStatus)
	fmt.Fprintf(sb, "  Transport errors:   %d\n", s.Stats.TransportErrors)
	fmt.Fprintf(sb, "  Malformed links:    %d\n", s.Stats.Malformed)
	if s.MaxInFlight > 0 {
		fmt.Fprintf(sb, "  Peak concurrency:   %d\n", s.MaxInFlight)
	}
	sb.WriteString("\n")
}

func (w *TextWriter) writeURLs(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\nURLS\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	if len(s.Pages) == 0 {
		sb.WriteString("  No URLs found\n\n")
		return
	}
	for _, p := range s.Pages {
		fmt.Fprintf(sb, "  [+] %s\n", p.URL)
	}
	sb.WriteString("\n")
}
