package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemaps/internal/config"
	"github.com/nao1215/sitemaps/internal/crawler"
	"github.com/nao1215/sitemaps/internal/history"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [root-url]",
		Short: "Show recorded crawl runs",
		Long: `History lists the runs recorded with "crawl --history".

Without arguments, or with --list-roots, it lists every recorded root URL.
With a root URL it lists the runs of that root, newest first, and marks
runs whose URL set differs from the run before.

Examples:
  sitemaps history
  sitemaps history http://localhost:8000/
  sitemaps history --pages 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-roots", "l", false, "List every recorded root URL")
	cmd.Flags().Int64("pages", 0, "List the URLs stored with this run ID")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listRoots, err := cmd.Flags().GetBool("list-roots")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetInt64("pages")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	store, err := history.Open(dbDir, history.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no history recorded yet (run \"sitemaps crawl --history\"): %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case runID > 0:
		pages, err := store.Pages(ctx, runID)
		if err != nil {
			return err
		}
		return printPages(out, runID, pages)
	case listRoots || len(args) == 0:
		roots, err := store.Roots(ctx)
		if err != nil {
			return err
		}
		return printRoots(out, roots)
	}

	// Runs are stored under the normalized root.
	scope, err := crawler.NewScope(args[0], nil, 1)
	if err != nil {
		return err
	}
	runs, err := store.Runs(ctx, scope.Root)
	if err != nil {
		return err
	}
	return printRuns(out, scope.Root, runs)
}

func printRoots(out io.Writer, roots []string) error {
	if len(roots) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded.")
		return err
	}
	fmt.Fprintf(out, "Recorded roots (%d):\n\n", len(roots))
	for _, root := range roots {
		fmt.Fprintf(out, "  • %s\n", root)
	}
	return nil
}

func printRuns(out io.Writer, root string, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintf(out, "No runs recorded for %s\n", root)
		return err
	}
	fmt.Fprintf(out, "Runs of %s (%d):\n\n", root, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-6s  %-12s  %s\n", "ID", "Date", "URLs", "Digest", "Changed")
	for _, run := range runs {
		changed := ""
		if run.Changed {
			changed = "yes"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-6d  %-12s  %s\n",
			run.ID,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.URLCount,
			run.Digest[:min(12, len(run.Digest))],
			changed,
		)
	}
	return nil
}

func printPages(out io.Writer, runID int64, pages []history.PageRecord) error {
	fmt.Fprintf(out, "Pages of run %d (%d):\n\n", runID, len(pages))
	for _, p := range pages {
		if p.Title != "" {
			fmt.Fprintf(out, "  %s  %s\n", p.URL, p.Title)
			continue
		}
		fmt.Fprintf(out, "  %s\n", p.URL)
	}
	return nil
}
