package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/test-dashboard/internal/models"
	"github.com/p-blackswan/test-dashboard/internal/playwright"
	"github.com/p-blackswan/test-dashboard/internal/results"
)

type uploadResponse struct {
	Message string     `json:"message"`
	Run     models.Run `json:"run"`
}

func newUploadCommand(opts *options) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "upload <projectId> <report.json>",
		Short: "Upload a Playwright JSON report as a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			if !models.ValidProjectID(projectID) {
				return fmt.Errorf("invalid project ID %q", projectID)
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			rep, err := playwright.Parse(raw)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			run, err := upload(ctx, NewClient(opts.server, opts.timeout), projectID, rep, source)
			if err != nil {
				return err
			}
			printUpload(cmd.OutOrStdout(), run, rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", results.SourceUpload, "run source label")
	return cmd
}

func upload(ctx context.Context, c *Client, projectID string, rep *playwright.Report, source string) (*models.Run, error) {
	nr := rep.NewRun(projectID, source)
	body := results.Upload{
		Stats:  &nr.Stats,
		Suites: nr.Suites,
		Errors: nr.Errors,
		Source: nr.Source,
	}
	var resp uploadResponse
	if err := c.do(ctx, "POST", "/api/upload/"+url.PathEscape(projectID), body, &resp); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return &resp.Run, nil
}

func printUpload(w io.Writer, run *models.Run, rep *playwright.Report) {
	st := run.Stats
	status := color.New(color.FgGreen).Sprint("PASSED")
	if st.Failed > 0 {
		status = color.New(color.FgRed).Sprint("FAILED")
	}
	fmt.Fprintf(w, "Uploaded run %d for %s: %s %d/%d passed, %d failed, %d skipped\n",
		run.ID, run.ProjectID, status, st.Passed, st.Total, st.Failed, st.Skipped)

	failures, err := rep.Failures()
	if err != nil || len(failures) == 0 {
		return
	}
	red := color.New(color.FgRed)
	for _, f := range failures {
		red.Fprintf(w, "  ✗ %s\n", f)
	}
}
