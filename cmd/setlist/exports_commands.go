package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"setlist/internal/correlate"
	"setlist/internal/index"
)

func newExportsCommand(ctx *commandContext) *cobra.Command {
	exportsCmd := &cobra.Command{
		Use:   "exports",
		Short: "Inspect and manage export-to-project links",
	}

	exportsCmd.AddCommand(newExportsScanCommand(ctx))
	exportsCmd.AddCommand(newExportsListCommand(ctx))
	exportsCmd.AddCommand(newExportsConfirmCommand(ctx))
	exportsCmd.AddCommand(newExportsRejectCommand(ctx))

	return exportsCmd
}

// maxAlternates caps the runner-up candidates shown per export.
const maxAlternates = 3

func newExportsScanCommand(ctx *commandContext) *cobra.Command {
	var locationFlag int64

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Correlate unlinked exports against indexed projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			correlator := correlate.New(cfg, store, ctx.logger())
			report, err := correlator.Run(cmd.Context(), locationFlag)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Examined %d unlinked exports: linked %d, skipped %d\n",
				report.Examined, report.Linked, report.Skipped)
			for _, proposal := range report.Proposals {
				best := proposal.Candidates[0]
				fmt.Fprintf(out, "  %s -> %s (%.2f, %s)\n",
					filepath.Base(proposal.Export.Path), filepath.Base(best.Project.Path), best.Confidence, best.Tier)
				for i, alt := range proposal.Candidates[1:] {
					if i == maxAlternates {
						break
					}
					fmt.Fprintf(out, "      also: %s (%.2f, %s)\n",
						filepath.Base(alt.Project.Path), alt.Confidence, alt.Tier)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&locationFlag, "location", 0, "Restrict correlation to one location id")
	return cmd
}

func newExportsListCommand(ctx *commandContext) *cobra.Command {
	var unlinkedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed exports and their links",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			var exports []*index.Export
			if unlinkedOnly {
				exports, err = store.ListUnlinkedExports(cmd.Context(), 0)
			} else {
				exports, err = store.ListExports(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(exports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No exports indexed")
				return nil
			}

			rows := make([][]string, 0, len(exports))
			for _, e := range exports {
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.Path,
					e.Format,
					formatDuration(e.DurationSeconds),
					formatLink(cmd, store, e),
				})
			}
			out := renderTable(
				[]string{"ID", "Path", "Format", "Duration", "Linked Project"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unlinkedOnly, "unlinked", false, "Show only exports without a project link")
	return cmd
}

func newExportsConfirmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <export-id> <project-id>",
		Short: "Manually pin an export to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportID, err := parseRecordID(args[0], "export")
			if err != nil {
				return err
			}
			projectID, err := parseRecordID(args[1], "project")
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if _, err := store.GetProject(cmd.Context(), projectID); err != nil {
				return err
			}
			if err := store.ConfirmExport(cmd.Context(), exportID, projectID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Confirmed export %d -> project %d\n", exportID, projectID)
			return nil
		},
	}
}

func newExportsRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <export-id>",
		Short: "Clear an export's project link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportID, err := parseRecordID(args[0], "export")
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if err := store.UnlinkExport(cmd.Context(), exportID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unlinked export %d\n", exportID)
			return nil
		},
	}
}

func parseRecordID(arg, kind string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%05.2f", int(seconds)/60, seconds-float64(int(seconds)/60*60))
}

func formatLink(cmd *cobra.Command, store *index.Store, e *index.Export) string {
	if !e.Linked() {
		return "-"
	}
	label := fmt.Sprintf("#%d", *e.ProjectID)
	if p, err := store.GetProject(cmd.Context(), *e.ProjectID); err == nil {
		label = p.Name()
	}
	return fmt.Sprintf("%s (%.2f %s)", label, e.Confidence, e.Origin)
}
