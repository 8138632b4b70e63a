package cli

import (
	"fmt"
	"os"

	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export [<hedges.json>]",
	Short: "Export a dataset as GeoJSON",
	Long: `Export a dataset as a GeoJSON FeatureCollection of LineStrings.
Each feature carries the hedge id, type, length and attributes.

Examples:
  haies export                       Export hedges_file to stdout
  haies export saved.json -o out.geojson`,
	Args: cobra.MaximumNArgs(1),
	Run:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) {
	c := initContext()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	records := c.hedges(path)

	data, err := hedge.FeatureCollection(records).MarshalJSON()
	if err != nil {
		exitError("failed to encode GeoJSON: %v", err)
	}

	if exportOutput == "" {
		os.Stdout.Write(data)
		fmt.Println()
		return
	}
	if err := os.WriteFile(exportOutput, data, 0644); err != nil {
		exitError("failed to write %s: %v", exportOutput, err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d hedge(s) to %s\n", len(records), exportOutput)
}
