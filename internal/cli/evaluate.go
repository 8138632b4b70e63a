package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/MTES-MCT/envergo/internal/config"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [<hedges.json>...]",
	Short: "Evaluate the regulatory conditions of one or more datasets",
	Long: `Send each dataset to the conditions_url of haies.toml and print the
verdict of every condition. Datasets are evaluated concurrently.

Defaults to the hedges_file of haies.toml.`,
	Run: runEvaluate,
}

const maxConcurrentEvaluations = 4

func runEvaluate(cmd *cobra.Command, args []string) {
	c := initContext()
	if c.Config.ConditionsURL == "" {
		exitError("no conditions_url in %s", c.Config.Path())
	}

	paths := args
	datasets := make([][]models.HedgeRecord, 0, len(args))
	if len(paths) == 0 {
		paths = []string{c.Config.HedgesFile}
		datasets = append(datasets, c.hedges(""))
	} else {
		for _, p := range paths {
			records, err := config.ReadHedges(p)
			if err != nil {
				exitError("%v", err)
			}
			datasets = append(datasets, records)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := c.client()
	results := make([]models.Evaluation, len(datasets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEvaluations)
	for i, records := range datasets {
		g.Go(func() error {
			eval, err := client.EvaluateConditions(gctx, records)
			if err != nil {
				return fmt.Errorf("%s: %w", paths[i], err)
			}
			c.Logger.Debug("evaluated", "dataset", paths[i], "conditions", len(eval))
			results[i] = eval
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		exitError("%v", err)
	}

	adequate := true
	for i, eval := range results {
		if len(results) > 1 {
			cyan.Printf("%s\n", paths[i])
		}
		printEvaluation(os.Stdout, eval)
		adequate = adequate && eval.Adequate()
	}
	if !adequate {
		os.Exit(2)
	}
}
