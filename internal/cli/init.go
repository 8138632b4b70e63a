package cli

import (
	"fmt"
	"os"

	"github.com/MTES-MCT/envergo/internal/config"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a haies.toml in the current directory",
	Long: `Create a haies.toml configuration in the current directory.

Examples:
  haies init --mode removal --origin https://haie.example.org
  haies init --mode plantation --origin https://haie.example.org \
    --conditions-url https://haie.example.org/haies/conditions/ \
    --save-url https://haie.example.org/haies/saisie/`,
	Args: cobra.NoArgs,
	Run:  runInit,
}

var (
	initMode          string
	initOrigin        string
	initConditionsURL string
	initSaveURL       string
	initMinimum       float64
)

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", string(models.ModePlantation), "Input mode (plantation, removal, read_only)")
	initCmd.Flags().StringVar(&initOrigin, "origin", "", "Origin of the host page (required)")
	initCmd.Flags().StringVar(&initConditionsURL, "conditions-url", "", "Compliance evaluation endpoint")
	initCmd.Flags().StringVar(&initSaveURL, "save-url", "", "Save endpoint")
	initCmd.Flags().Float64Var(&initMinimum, "minimum-length", 0, "Minimum length to plant, in meters")
	initCmd.MarkFlagRequired("origin")
}

func runInit(cmd *cobra.Command, args []string) {
	dir, err := os.Getwd()
	if err != nil {
		exitError("%v", err)
	}

	cfg, err := config.Initialize(dir, initMode, initOrigin)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	if initConditionsURL != "" || initSaveURL != "" || initMinimum > 0 {
		cfg.ConditionsURL = initConditionsURL
		cfg.SaveURL = initSaveURL
		cfg.MinimumLengthToPlant = initMinimum
		if err := cfg.Validate(); err != nil {
			os.Remove(cfg.Path())
			exitError("%v", err)
		}
		if err := cfg.Save(); err != nil {
			exitError("failed to save config: %v", err)
		}
	}

	fmt.Printf("Created %s\n", cfg.Path())
	fmt.Printf("Mode:   %s\n", cfg.Mode)
	fmt.Printf("Origin: %s\n", cfg.Origin)
}
