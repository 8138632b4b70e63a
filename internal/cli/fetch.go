package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch <input-id>",
	Short: "Download a saved dataset from the save service",
	Long: `Download the hedges saved under an input id.

Examples:
  haies fetch 3f1c...            Print the dataset to stdout
  haies fetch 3f1c... -o saved.json`,
	Args: cobra.ExactArgs(1),
	Run:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Output file (default: stdout)")
}

func runFetch(cmd *cobra.Command, args []string) {
	c := initContext()
	if c.Config.SaveURL == "" {
		exitError("no save_url in %s", c.Config.Path())
	}

	records, err := c.client().FetchHedges(context.Background(), args[0])
	if err != nil {
		exitError("%v", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		exitError("failed to encode hedges: %v", err)
	}

	if fetchOutput == "" {
		os.Stdout.Write(data)
		fmt.Println()
		return
	}
	if err := os.WriteFile(fetchOutput, data, 0644); err != nil {
		exitError("failed to write %s: %v", fetchOutput, err)
	}
	green.Fprintf(os.Stderr, "Fetched %d hedge(s) into %s\n", len(records), fetchOutput)
}
