package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/test-dashboard/internal/checklist"
)

func newParseCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse <checklist.md>",
		Short: "Parse a checklist and print its categories and items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read checklist: %w", err)
			}
			doc := checklist.Parse(string(raw))
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			printChecklist(cmd.OutOrStdout(), checklist.Title(raw), doc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed document as JSON")
	return cmd
}

func printChecklist(w io.Writer, title string, doc checklist.Document) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	if title != "" {
		bold.Fprintf(w, "%s\n", title)
	}
	fmt.Fprintf(w, "%d categories, %d items\n", len(doc.Categories), len(doc.Items))

	current := ""
	for _, it := range doc.Items {
		if it.Category != current {
			current = it.Category
			cyan.Fprintf(w, "\n%s\n", current)
		}
		gray.Fprintf(w, "  %3d ", it.Index)
		fmt.Fprintf(w, "%s\n", it.Title)
	}
}
