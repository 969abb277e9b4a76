package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"setlist/internal/correlate"
	"setlist/internal/scan"
	"setlist/internal/worker"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var allFlag bool
	var locationFlag int64

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan locations and refresh the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !allFlag && locationFlag == 0 {
				allFlag = true
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()

			supervisor := worker.NewSupervisor(logger)
			defer func() { _ = supervisor.Shutdown(cmd.Context()) }()
			correlator := correlate.New(cfg, store, logger)
			orchestrator := scan.New(cfg, store, correlator, supervisor, logger)

			events := make(chan scan.Event, 256)
			var handles []*worker.Handle
			if allFlag {
				handles, err = orchestrator.ScanAll(cmd.Context(), events)
			} else {
				var handle *worker.Handle
				handle, err = orchestrator.ScanLocation(cmd.Context(), locationFlag, events)
				if handle != nil {
					handles = append(handles, handle)
				}
			}
			if err != nil {
				return err
			}
			if len(handles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active locations to scan")
				return nil
			}

			remaining := len(handles)
			var failed bool
			for ev := range events {
				if !ev.State.Terminal() {
					continue
				}
				printSummary(cmd, ev)
				if ev.State == scan.StateError {
					failed = true
				}
				remaining--
				if remaining == 0 {
					break
				}
			}
			for _, h := range handles {
				if _, err := h.Wait(cmd.Context()); err != nil {
					return err
				}
			}
			if failed {
				return fmt.Errorf("one or more scans failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "Scan every active location")
	cmd.Flags().Int64Var(&locationFlag, "location", 0, "Scan a single location by id")
	return cmd
}

func printSummary(cmd *cobra.Command, ev scan.Event) {
	out := cmd.OutOrStdout()
	s := ev.Summary
	if s == nil {
		fmt.Fprintf(out, "Location %d: %s\n", ev.LocationID, ev.State)
		return
	}
	fmt.Fprintf(out, "Location %d: %s in %s\n", s.LocationID, s.State, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  projects %d (inserted %d, updated %d, moved %d, failed %d), exports %d, marked missing %d\n",
		s.ProjectsSeen, s.ProjectsInserted, s.ProjectsUpdated, s.ProjectsMoved, s.ProjectsFailed,
		s.ExportsSeen, s.MarkedMissing)
	if len(s.Warnings) > 0 {
		fmt.Fprintf(out, "  warnings: %s\n", strings.Join(s.Warnings, "; "))
	}
	if ev.Err != nil {
		fmt.Fprintf(out, "  error: %v\n", ev.Err)
	}
}
