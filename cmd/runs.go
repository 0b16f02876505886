package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackside-analytics/railscan-cli/internal/model"
	"github.com/trackside-analytics/railscan-cli/internal/pipeline"
	"github.com/trackside-analytics/railscan-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored survey runs",
}

var (
	runsStatus string
	runsLimit  int
)

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List survey runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs found")
			return nil
		}
		fmt.Printf("%-36s  %-20s  %-8s  %8s  %8s  %s\n",
			"ID", "NAME", "STATUS", "POINTS", "SEGMENTS", "CREATED")
		for _, r := range runs {
			fmt.Printf("%-36s  %-20s  %-8s  %8d  %8d  %s\n",
				r.ID, r.Name, r.Status, r.PointCount, r.SegmentCount,
				r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its label breakdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		points, err := st.ListLabeledPoints(ctx, run.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Run %s (%s)\n", run.ID, run.Name)
		fmt.Printf("  status:    %s\n", run.Status)
		fmt.Printf("  threshold: %.1f m\n", run.ThresholdM)
		fmt.Printf("  points:    %d\n", run.PointCount)
		fmt.Printf("  segments:  %d\n", run.SegmentCount)
		fmt.Printf("  created:   %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
		counts := pipeline.CountLabels(points)
		for _, cat := range append(model.FeatureCategories, model.CategoryOther) {
			if n := counts[cat]; n > 0 {
				fmt.Printf("  %-10s %d\n", cat, n)
			}
		}
		return nil
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, complete, failed)")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 0, "maximum runs to list")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
