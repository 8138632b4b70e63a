// Package cli implements the command-line interface for haies.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MTES-MCT/envergo/internal/config"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/remote"
	"github.com/MTES-MCT/envergo/internal/validation"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config    *config.Config
	Validator *validation.Validator
	Logger    *slog.Logger
}

// initContext loads the configuration and builds the validator
func initContext() *cmdContext {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitError("%v", err)
	}

	overrides, err := cfg.SchemaOverrides()
	if err != nil {
		exitError("%v", err)
	}
	v, err := validation.NewValidator(overrides...)
	if err != nil {
		exitError("invalid attribute schema: %v", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &cmdContext{Config: cfg, Validator: v, Logger: logger}
}

// client returns a retrying client for the configured endpoints.
func (c *cmdContext) client() remote.Client {
	return remote.NewRetryClient(remote.NewHTTPClient(remote.Endpoints{
		ConditionsURL: c.Config.ConditionsURL,
		SaveURL:       c.Config.SaveURL,
	}, c.Config.RequestTimeout()), nil)
}

// hedges reads the dataset at path, or the configured hedges file when
// path is empty.
func (c *cmdContext) hedges(path string) []models.HedgeRecord {
	var (
		records []models.HedgeRecord
		err     error
	)
	if path != "" {
		records, err = config.ReadHedges(path)
	} else {
		if c.Config.HedgesFile == "" {
			exitError("no dataset given and no hedges_file in %s", c.Config.Path())
		}
		records, err = c.Config.LoadHedges()
	}
	if err != nil {
		exitError("%v", err)
	}
	return records
}

var rootCmd = &cobra.Command{
	Use:   "haies",
	Short: "Hedge input tools",
	Long: `haies digitizes hedges to plant and to remove, checks their
attributes, computes their lengths on the WGS84 ellipsoid and exchanges
datasets with the save and compliance services.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to haies.toml (default: search upwards from the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(replayCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
