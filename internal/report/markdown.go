package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the summary as a Markdown document.
//
// Design decision: nao1215/markdown builds tables and GitHub alerts from
// typed values, so titles containing "|" or backticks cannot break the
// document layout.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStats(md, summary)
	w.writePages(md, summary)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by [sitemaps](https://github.com/nao1215/sitemaps)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Sitemap Crawl Summary")
	md.PlainText("")

	rows := [][]string{
		{"Root", "`" + s.Root + "`"},
		{"Finished", s.FinishedAt.Format("2006-01-02 15:04:05 MST")},
		{"Elapsed", (time.Duration(s.ElapsedMillis) * time.Millisecond).String()},
		{"URLs", strconv.Itoa(s.Stats.Results)},
	}
	if s.Output != "" {
		rows = append(rows, []string{"Output", "`" + s.Output + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case s.Changed != nil && *s.Changed:
		md.Warningf("The URL set changed since the previous recorded run (%d URLs now).", s.Stats.Results)
	case s.Failures() > 0:
		md.Importantf("%d URL(s) could not be fetched and are missing from the sitemap.", s.Failures())
	default:
		md.Tip("Every discovered URL was fetched successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, s *Summary) {
	md.H2("Statistics")
	md.PlainText("")

	rows := [][]string{
		{"Discovered", strconv.Itoa(s.Stats.Discovered)},
		{"Fetched", strconv.Itoa(s.Stats.Fetched)},
		{"Non-HTML", strconv.Itoa(s.Stats.NonHTML)},
		{"Unexpected status", strconv.Itoa(s.Stats.UnexpectedStatus)},
		{"Transport errors", strconv.Itoa(s.Stats.TransportErrors)},
		{"Malformed links", strconv.Itoa(s.Stats.Malformed)},
	}
	if s.MaxInFlight > 0 {
		rows = append(rows, []string{"Peak concurrency", strconv.Itoa(s.MaxInFlight)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Stats.Discovered > 0 {
		w.writePieChart(md, s)
	}
}

// writePieChart shows how the discovered URLs ended.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Outcomes"),
		piechart.WithShowData(true),
	)

	pages := s.Stats.Results - s.Stats.NonHTML
	if pages > 0 {
		chart.LabelAndIntValue("HTML", uint64(pages))
	}
	if s.Stats.NonHTML > 0 {
		chart.LabelAndIntValue("Non-HTML", uint64(s.Stats.NonHTML))
	}
	if s.Stats.UnexpectedStatus > 0 {
		chart.LabelAndIntValue("Unexpected status", uint64(s.Stats.UnexpectedStatus))
	}
	if s.Stats.TransportErrors > 0 {
		chart.LabelAndIntValue("Transport error", uint64(s.Stats.TransportErrors))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, s *Summary) {
	md.H2("URLs")
	md.PlainText("")

	if len(s.Pages) == 0 {
		md.PlainText("No URLs found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Pages))
	for i, p := range s.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		lastModified := "-"
		if p.LastModified != nil {
			lastModified = p.LastModified.Format(time.DateOnly)
		}
		rows[i] = []string{p.URL, truncateString(title, 60), lastModified}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Last Modified"},
		Rows:   rows,
	})
	md.PlainText("")
}

// truncateString shortens s to maxLen bytes, ending with "...".
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
