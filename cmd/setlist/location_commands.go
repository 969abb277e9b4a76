package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"setlist/internal/index"
)

func newLocationCommand(ctx *commandContext) *cobra.Command {
	locationCmd := &cobra.Command{
		Use:   "location",
		Short: "Manage registered library locations",
	}

	locationCmd.AddCommand(newLocationAddCommand(ctx))
	locationCmd.AddCommand(newLocationListCommand(ctx))
	locationCmd.AddCommand(newLocationActivateCommand(ctx, true))
	locationCmd.AddCommand(newLocationActivateCommand(ctx, false))
	locationCmd.AddCommand(newLocationRemoveCommand(ctx))

	return locationCmd
}

func newLocationAddCommand(ctx *commandContext) *cobra.Command {
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a root folder to index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locType, ok := index.ParseLocationType(typeFlag)
			if !ok {
				return fmt.Errorf("unknown location type %q (expected local, network, cloud, or removable)", typeFlag)
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			location, err := store.AddLocation(cmd.Context(), args[0], locType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered location %d: %s (%s)\n", location.ID, location.RootPath, location.Type)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", string(index.LocationLocal), "Location type (local, network, cloud, removable)")
	return cmd
}

func newLocationListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			locations, err := store.ListLocations(cmd.Context())
			if err != nil {
				return err
			}
			if len(locations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No locations registered")
				return nil
			}
			rows := make([][]string, 0, len(locations))
			for _, loc := range locations {
				rows = append(rows, []string{
					strconv.FormatInt(loc.ID, 10),
					loc.RootPath,
					string(loc.Type),
					locationState(loc),
					formatScanTime(loc.LastScanAt),
				})
			}
			out := renderTable(
				[]string{"ID", "Path", "Type", "State", "Last Scan"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newLocationActivateCommand(ctx *commandContext, active bool) *cobra.Command {
	use, short, verb := "activate <id>", "Resume scanning and watching a location", "Activated"
	if !active {
		use, short, verb = "deactivate <id>", "Pause scanning and watching a location", "Deactivated"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocationID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if err := store.SetLocationActive(cmd.Context(), id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s location %d\n", verb, id)
			return nil
		},
	}
}

func newLocationRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a location and detach its indexed records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocationID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if err := store.RemoveLocation(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed location %d (indexed records kept without a location)\n", id)
			return nil
		},
	}
}

func parseLocationID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid location id %q", arg)
	}
	return id, nil
}

func locationState(loc *index.Location) string {
	switch {
	case !loc.Active:
		return "inactive"
	case loc.Degraded:
		return "degraded"
	default:
		return "active"
	}
}

func formatScanTime(at *time.Time) string {
	if at == nil {
		return "never"
	}
	return at.Local().Format("2006-01-02 15:04")
}
