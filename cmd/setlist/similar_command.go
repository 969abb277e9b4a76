package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"setlist/internal/similarity"
)

func newSimilarCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "similar <project-id>",
		Short: "Rank indexed projects by similarity to one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseRecordID(args[0], "project")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			reference, err := store.GetProject(cmd.Context(), projectID)
			if err != nil {
				return err
			}

			engine := similarity.New(cfg, store, ctx.logger())
			results, err := engine.Rank(cmd.Context(), projectID, limitFlag)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Projects similar to %s\n", reference.Name())
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects above the similarity threshold")
				return nil
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					strconv.FormatInt(r.ProjectID, 10),
					r.Path,
					fmt.Sprintf("%.3f", r.Score),
					formatParts(r.Parts),
				})
			}
			out := renderTable(
				[]string{"ID", "Path", "Score", "Breakdown"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 10, "Maximum results to show (0 for all)")
	return cmd
}

// formatParts renders the per-metric breakdown in a stable order, skipping
// dimensions that were absent from the comparison.
func formatParts(parts map[similarity.Metric]float64) string {
	order := []similarity.Metric{
		similarity.MetricPlugins,
		similarity.MetricDevices,
		similarity.MetricTempo,
		similarity.MetricStructure,
		similarity.MetricFeatures,
	}
	pieces := make([]string, 0, len(parts))
	for _, metric := range order {
		score, ok := parts[metric]
		if !ok {
			continue
		}
		pieces = append(pieces, fmt.Sprintf("%s %.2f", metric, score))
	}
	return strings.Join(pieces, " ")
}
