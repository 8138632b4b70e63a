package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [<hedges.json>]",
	Short: "Show hedges, lengths and the compensation rate of a dataset",
	Long: `Show every hedge of a dataset with its geodesic length and missing
attributes, then the totals per hedge type and the compensation rate.

Defaults to the hedges_file of haies.toml.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) {
	c := initContext()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	records := c.hedges(path)

	if len(records) == 0 {
		fmt.Println("No hedges")
		return
	}

	fmt.Printf("Mode: %s\n\n", c.Config.Mode)
	printHedges(os.Stdout, records, c.Validator)
	fmt.Println()
	printSummary(os.Stdout, records, c.Config.MinimumLengthToPlant)
}
