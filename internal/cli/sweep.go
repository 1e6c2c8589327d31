package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/broker"
	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
)

func newSweepCmd(a *app) *cobra.Command {
	var (
		watch       bool
		interval    time.Duration
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire live offers whose deadline has passed",
		Long: "Expire due offers once, or with --watch keep sweeping every\n" +
			"sweep_interval until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(backend *sqlite.Backend) error {
				sweeper := broker.Sweeper{
					Service:     a.service(backend),
					BatchSize:   a.settings.SweepBatch,
					Concurrency: concurrency,
					Logger:      a.logger,
				}
				if watch {
					if interval <= 0 {
						interval = a.settings.SweepInterval
					}
					return sweeper.Run(cmd.Context(), interval)
				}
				report, err := sweeper.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(report, func(w io.Writer) {
					fmt.Fprintf(w, "due %d, expired %d, skipped %d, failed %d\n",
						report.Due, report.Expired, report.Skipped, report.Failed)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep sweeping until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "sweep period with --watch (default: sweep_interval)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel expiries per sweep (default 4)")
	return cmd
}
