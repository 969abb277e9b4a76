package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"setlist/internal/daemon"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var skipInitialScan bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the indexing daemon and watch locations for changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			logger := ctx.logger()

			d, err := daemon.New(cfg, store, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "setlist daemon running (session %s)\n", d.SessionID())

			if !skipInitialScan {
				if err := d.ScanAll(runCtx); err != nil {
					logger.Warn("initial scan failed", "error", err)
				}
			}

			<-runCtx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			d.Stop(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipInitialScan, "no-initial-scan", false, "Do not run a full scan on startup")
	return cmd
}
