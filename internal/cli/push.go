package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/MTES-MCT/envergo/internal/validation"
	"github.com/spf13/cobra"
)

var pushForce bool

var pushCmd = &cobra.Command{
	Use:   "push [<hedges.json>]",
	Short: "Save a dataset to the save service",
	Long: `Send a dataset to the save_url of haies.toml and print the saved
input id and summary. Incomplete hedges of the type the mode validates
(TO_REMOVE in removal mode, TO_PLANT otherwise) block the push unless --force.

Examples:
  haies push                   Push hedges_file
  haies push draft.json        Push draft.json
  haies push --force draft.json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPush,
}

func init() {
	pushCmd.Flags().BoolVarP(&pushForce, "force", "f", false, "Push even when hedges are incomplete")
}

func runPush(cmd *cobra.Command, args []string) {
	c := initContext()
	if c.Config.SaveURL == "" {
		exitError("no save_url in %s", c.Config.Path())
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	records := c.hedges(path)

	if ids := blockingHedges(records, c.Config.ParsedMode(), c.Validator); len(ids) > 0 && !pushForce {
		exitError("%v (use --force to push anyway)", &validation.InvalidHedgesError{IDs: ids})
	}

	resp, err := c.client().SaveHedges(context.Background(), records)
	if err != nil {
		exitError("push failed: %v", err)
	}

	green.Printf("Saved %d hedge(s) as %s\n", len(records), resp.InputID)
	fmt.Printf("To plant:  %d hedge(s), %d m\n", resp.HedgesToPlant, resp.LengthToPlant)
	fmt.Printf("To remove: %d hedge(s), %d m (%d m on PAC parcels)\n", resp.HedgesToRemove, resp.LengthToRemove, resp.LineaireDetruitPac)
	fmt.Fprintf(os.Stderr, "Fetch it back with: haies fetch %s\n", resp.InputID)
}
