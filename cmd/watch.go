package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/ingest"
	"github.com/trackside-analytics/railscan-cli/internal/pipeline"
	"github.com/trackside-analytics/railscan-cli/internal/watch"
)

var watchInbox string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an inbox directory and label ride drops as they arrive",
	Long:  "Monitors the inbox for drop directories containing latitude.csv, longitude.csv, vibration1.csv and vibration2.csv (speed.csv optional) and runs the survey pipeline on each complete drop.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		inbox := watchInbox
		if inbox == "" {
			inbox = cfg.Watch.Inbox
		}

		pipe := pipeline.New(st)
		handler := func(ctx context.Context, name string, paths ingest.RidePaths) error {
			result, err := pipe.Run(ctx, paths, pipelineOptions(name))
			if err != nil {
				return err
			}
			printRunSummary(result)
			return nil
		}

		w := watch.New(inbox, handler)
		if err := w.Backfill(ctx); err != nil {
			return err
		}
		zap.L().Info("watching for ride drops", zap.String("inbox", inbox))
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchInbox, "inbox", "", "inbox directory (default from config)")
	rootCmd.AddCommand(watchCmd)
}
