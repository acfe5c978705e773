// Command dashctl parses checklists, uploads Playwright reports and shows run history.
package main

import (
	"fmt"
	"os"

	"github.com/p-blackswan/test-dashboard/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
