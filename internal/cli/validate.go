package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/MTES-MCT/envergo/internal/validation"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [<hedges.json>]",
	Short: "Check that every hedge carries its required attributes",
	Long: `Check every hedge against the attribute schema of its type.
Exits with status 1 and lists the incomplete hedges when any is found.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) {
	c := initContext()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	records := c.hedges(path)

	missing := missingByHedge(records, c.Validator)
	if len(missing) == 0 {
		green.Printf("%d hedge(s), all complete\n", len(records))
		return
	}

	ids := make([]string, 0, len(missing))
	for id := range missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	printHedges(os.Stdout, records, c.Validator)
	fmt.Println()
	exitError("%v", &validation.InvalidHedgesError{IDs: ids})
}
