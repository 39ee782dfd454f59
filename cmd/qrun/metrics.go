package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/qrun/internal/metrics"
)

func newMetricsCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Build the derived throughput and satisfaction tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			builder := metrics.NewBuilder(a.cfg.Metrics, a.cfg.Data.Files(), a.logger)
			if _, err := builder.Build(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return builder.Watch(ctx, metrics.DefaultSettle)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and rebuild whenever a flat table changes")
	return cmd
}
