package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/MTES-MCT/envergo/internal/geodesic"
	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/validation"
	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// missingByHedge returns the missing attributes of every incomplete hedge,
// keyed by hedge id.
func missingByHedge(records []models.HedgeRecord, v *validation.Validator) map[string][]string {
	out := make(map[string][]string)
	for _, r := range records {
		if missing := v.Schema(r.Type).Missing(r.AdditionalData); len(missing) > 0 {
			out[r.ID] = missing
		}
	}
	return out
}

// blockingHedges returns, in order, the hedges of the mode's validated type
// that still miss attributes. Only those block a save.
func blockingHedges(records []models.HedgeRecord, mode models.Mode, v *validation.Validator) []string {
	gated := mode.ValidatedType()
	var ids []string
	for _, r := range records {
		if r.Type != gated {
			continue
		}
		if len(v.Schema(r.Type).Missing(r.AdditionalData)) > 0 {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// printHedges lists each hedge with its length and validity.
func printHedges(w io.Writer, records []models.HedgeRecord, v *validation.Validator) {
	missing := missingByHedge(records, v)
	for _, r := range records {
		haieType, _ := r.AdditionalData.String(models.AttrTypeHaie)
		if haieType == "" {
			haieType = "-"
		}
		fmt.Fprintf(w, "  %-5s %-10s %8.0f m  %-13s ", r.ID, r.Type, geodesic.LengthOf(r.LatLngs), haieType)
		if m, ok := missing[r.ID]; ok {
			red.Fprintf(w, "missing %s\n", strings.Join(m, ", "))
		} else {
			green.Fprintln(w, "ok")
		}
	}
}

// printSummary prints totals, the compensation rate and the planting
// threshold check.
func printSummary(w io.Writer, records []models.HedgeRecord, minimumToPlant float64) {
	s := hedge.Summarize(records)

	fmt.Fprintf(w, "To plant:  %d hedge(s), %.0f m\n", s.HedgesToPlant, s.LengthToPlant)
	printLengthsByType(w, s.LengthsToPlant)
	fmt.Fprintf(w, "To remove: %d hedge(s), %.0f m", s.HedgesToRemove, s.LengthToRemove)
	if s.LengthToRemovePac > 0 {
		fmt.Fprintf(w, " (%.0f m on PAC parcels)", s.LengthToRemovePac)
	}
	fmt.Fprintln(w)
	printLengthsByType(w, s.LengthsToRemove)

	if s.HedgesToRemove > 0 {
		fmt.Fprintf(w, "Compensation rate: %.0f %%\n", s.CompensationRate())
	}
	if minimumToPlant > 0 {
		if s.LengthToPlant >= minimumToPlant {
			green.Fprintf(w, "Minimum length to plant reached (%.0f m)\n", minimumToPlant)
		} else {
			yellow.Fprintf(w, "Minimum length to plant not reached: %.0f m of %.0f m\n", s.LengthToPlant, minimumToPlant)
		}
	}
}

func printLengthsByType(w io.Writer, lengths map[string]float64) {
	keys := make([]string, 0, len(lengths))
	for k := range lengths {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-13s %8.0f m\n", k, lengths[k])
	}
}

// printEvaluation prints each condition and whether it is met.
func printEvaluation(w io.Writer, eval models.Evaluation) {
	names := make([]string, 0, len(eval))
	for name := range eval {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		result, ok := eval[name].Result()
		switch {
		case !ok:
			cyan.Fprintf(w, "  ? %s\n", name)
		case result:
			green.Fprintf(w, "  ✓ %s\n", name)
		default:
			red.Fprintf(w, "  ✗ %s\n", name)
		}
	}
	if eval.Adequate() {
		green.Fprintln(w, "Conditions met")
	} else {
		unmet := eval.Unfulfilled()
		sort.Strings(unmet)
		red.Fprintf(w, "Conditions not met: %s\n", strings.Join(unmet, ", "))
	}
}
