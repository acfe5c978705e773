// Package cli implements dashctl, the operator command line for the test dashboard.
package cli

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// DefaultServer is used when neither --server nor DASHBOARD_URL is set.
const DefaultServer = "http://localhost:3030"

type options struct {
	server  string
	timeout time.Duration
	noColor bool
}

// NewRootCommand creates the dashctl root command.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Operate the Playwright test dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if opts.noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
				color.NoColor = true
			}
		},
	}

	server := os.Getenv("DASHBOARD_URL")
	if server == "" {
		server = DefaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "dashboard API base URL (env DASHBOARD_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newParseCommand(),
		newUploadCommand(opts),
		newHistoryCommand(opts),
	)
	return root
}
