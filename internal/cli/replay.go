package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/MTES-MCT/envergo/internal/compliance"
	"github.com/MTES-MCT/envergo/internal/embed"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/widget"
	"github.com/spf13/cobra"
)

var (
	replayFrom   string
	replayOutput string
	replayStrict bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Run a scripted input session",
	Long: `Run an input session driven by a JSON lines file of events, one per
line: start, vertex, move, delete_vertex, finish, cancel_drawing, attributes,
remove, hover, save, cancel, host_message and wait.

Messages for the host page are posted to host_url when configured, printed
to stdout otherwise.

Example events:
  {"action": "start", "type": "TO_REMOVE"}
  {"action": "vertex", "point": {"lat": 43.6, "lng": 1.44}}
  {"action": "vertex", "point": {"lat": 43.601, "lng": 1.44}}
  {"action": "finish"}
  {"action": "attributes", "id": "D1", "data": {"typeHaie": "mixte", "surParcellePac": false}}
  {"action": "save"}`,
	Args: cobra.ExactArgs(1),
	Run:  runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "Restore the hedges saved under this input id first")
	replayCmd.Flags().StringVarP(&replayOutput, "output", "o", "", "Write the final dataset to this file")
	replayCmd.Flags().BoolVar(&replayStrict, "strict", false, "Stop at the first failing event")
}

func runReplay(cmd *cobra.Command, args []string) {
	c := initContext()

	f, err := os.Open(args[0])
	if err != nil {
		exitError("%v", err)
	}
	events, err := widget.ReadEvents(f)
	f.Close()
	if err != nil {
		exitError("%s: %v", args[0], err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps := widget.Deps{
		Logger: c.Logger,
		OnCompliance: func(r compliance.Result) {
			c.Logger.Debug("compliance", "status", r.Status, "seq", r.Seq, "error", r.Err)
		},
	}
	if c.Config.ConditionsURL != "" || c.Config.SaveURL != "" {
		deps.Client = c.client()
	}
	if c.Config.HostURL != "" {
		deps.Poster = embed.NewHTTPPoster(c.Config.HostURL, c.Logger)
	} else {
		deps.Poster = embed.NewWriterPoster(os.Stdout)
	}
	if replayFrom != "" {
		if deps.Client == nil {
			exitError("--from needs a save_url in %s", c.Config.Path())
		}
		saved, err := deps.Client.FetchHedges(ctx, replayFrom)
		if err != nil {
			exitError("%v", err)
		}
		deps.Saved = saved
	}

	s, err := widget.New(c.Config, deps)
	if err != nil {
		exitError("%v", err)
	}
	defer s.Close()

	for i, e := range events {
		err := s.Apply(ctx, e)
		if errors.Is(err, widget.ErrClosed) {
			break
		}
		if err != nil {
			if replayStrict {
				exitError("event %d (%s): %v", i+1, e.Action, err)
			}
			yellow.Fprintf(os.Stderr, "event %d (%s): %v\n", i+1, e.Action, err)
		}
	}

	printView(s.View())

	if replayOutput != "" {
		data, err := json.MarshalIndent(s.Records(), "", "  ")
		if err != nil {
			exitError("failed to encode hedges: %v", err)
		}
		if err := os.WriteFile(replayOutput, data, 0644); err != nil {
			exitError("failed to write %s: %v", replayOutput, err)
		}
	}
}

func printView(v widget.View) {
	w := os.Stderr
	fmt.Fprintf(w, "\nTo plant:  %d hedge(s), %.0f m\n", v.ToPlant.Count, v.ToPlant.TotalLength)
	fmt.Fprintf(w, "To remove: %d hedge(s), %.0f m\n", v.ToRemove.Count, v.ToRemove.TotalLength)
	if v.ToRemove.Count > 0 {
		fmt.Fprintf(w, "Compensation rate: %.0f %%\n", v.CompensationRate)
	}
	if len(v.InvalidHedges) > 0 {
		red.Fprintf(w, "Incomplete: %v\n", v.InvalidHedges)
	}
	if v.Mode == models.ModePlantation && v.Compliance.Evaluation != nil {
		printEvaluation(w, v.Compliance.Evaluation)
	}
	if v.Closed {
		fmt.Fprintln(w, "Session closed")
	}
}
