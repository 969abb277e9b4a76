package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"setlist/internal/liveset"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index counts and detected Live installations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			summary, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Locations", fmt.Sprintf("%d (%d active)", summary.Locations, summary.ActiveLocations)},
				{"Projects", strconv.Itoa(summary.Projects)},
				{"  complete", strconv.Itoa(summary.CompleteCount)},
				{"  partial", strconv.Itoa(summary.PartialCount)},
				{"  failed", strconv.Itoa(summary.FailedCount)},
				{"  missing", strconv.Itoa(summary.MissingCount)},
				{"Exports", fmt.Sprintf("%d (%d linked)", summary.Exports, summary.LinkedExports)},
				{"Database", store.Path()},
			}
			out := renderTable([]string{"Index", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
			fmt.Fprintln(cmd.OutOrStdout(), out)

			installations := liveset.DetectInstallations()
			if len(installations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No Ableton Live installations detected")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Detected Live installations:")
			for _, inst := range installations {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s)\n", inst.Name, inst.Path)
			}
			return nil
		},
	}
}
