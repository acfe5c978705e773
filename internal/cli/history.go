package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

func newHistoryCommand(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <projectId>",
		Short: "Show recent runs of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			var runs []models.Run
			c := NewClient(opts.server, opts.timeout)
			if err := c.do(ctx, "GET", "/api/history/"+url.PathEscape(args[0]), nil, &runs); err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[:limit]
			}
			printHistory(cmd.OutOrStdout(), args[0], runs, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many runs")
	return cmd
}

func printHistory(w io.Writer, projectID string, runs []models.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs recorded for %s\n", projectID)
		return
	}
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%s: %d runs\n", projectID, len(runs))

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)
	for _, r := range runs {
		mark := green.Sprint("✓")
		if r.ExitCode != 0 {
			mark = red.Sprint("✗")
		}
		dur := time.Duration(r.Stats.Duration * float64(time.Millisecond)).Round(100 * time.Millisecond)
		fmt.Fprintf(w, "%s %4d/%-4d passed  %3d failed  %3d skipped  %8s  %-14s ",
			mark, r.Stats.Passed, r.Stats.Total, r.Stats.Failed, r.Stats.Skipped, dur, r.Source)
		gray.Fprintf(w, "%s\n", humanize.RelTime(r.Timestamp, now, "ago", "from now"))
	}
}
