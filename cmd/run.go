package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trackside-analytics/railscan-cli/internal/export"
	"github.com/trackside-analytics/railscan-cli/internal/ingest"
	"github.com/trackside-analytics/railscan-cli/internal/model"
	"github.com/trackside-analytics/railscan-cli/internal/pipeline"
	"github.com/trackside-analytics/railscan-cli/internal/segment"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute survey runs",
}

var (
	runName      string
	runLat       string
	runLon       string
	runVib1      string
	runVib2      string
	runSpeed     string
	runThreshold float64
	runWorkers   int
	runNearest   bool
	runGeoJSON   string
)

// ridePathsFromFlags merges command-line paths over the configured ride
// dataset mapping.
func ridePathsFromFlags() ingest.RidePaths {
	paths := ingest.RidePaths{
		Latitude:   cfg.Ingest.Ride["latitude"],
		Longitude:  cfg.Ingest.Ride["longitude"],
		Vibration1: cfg.Ingest.Ride["vibration1"],
		Vibration2: cfg.Ingest.Ride["vibration2"],
		Speed:      cfg.Ingest.Ride["speed"],
	}
	if runLat != "" {
		paths.Latitude = runLat
	}
	if runLon != "" {
		paths.Longitude = runLon
	}
	if runVib1 != "" {
		paths.Vibration1 = runVib1
	}
	if runVib2 != "" {
		paths.Vibration2 = runVib2
	}
	if runSpeed != "" {
		paths.Speed = runSpeed
	}
	return paths
}

// pipelineOptions builds run options from config with flag overrides.
func pipelineOptions(name string) pipeline.Options {
	opts := pipeline.Options{
		Name:            name,
		ThresholdMeters: cfg.Label.ThresholdMeters,
		Workers:         cfg.Label.Workers,
		Nearest:         cfg.Label.NearestMatch,
		Segment: segment.Config{
			SampleInterval: cfg.Segment.SampleIntervalSecs,
			WindowSeconds:  cfg.Segment.WindowSecs,
		},
	}
	if runThreshold > 0 {
		opts.ThresholdMeters = runThreshold
	}
	if runWorkers > 0 {
		opts.Workers = runWorkers
	}
	if runNearest {
		opts.Nearest = true
	}
	return opts
}

func printRunSummary(result *pipeline.Result) {
	fmt.Printf("Run %s (%s)\n", result.Run.ID, result.Run.Name)
	fmt.Printf("  points:   %d\n", len(result.Points))
	fmt.Printf("  segments: %d\n", len(result.Segments))
	for _, cat := range append(model.FeatureCategories, model.CategoryOther) {
		if n := result.Counts[cat]; n > 0 {
			fmt.Printf("  %-10s %d\n", cat, n)
		}
	}
}

var runLabelCmd = &cobra.Command{
	Use:   "label",
	Short: "Label a ride recording and store the survey run",
	Long:  "Loads the ride coordinate and vibration CSVs, labels every track point against the stored feature set, windows the vibration channels into segments, and persists the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := pipeline.New(st).Run(ctx, ridePathsFromFlags(), pipelineOptions(runName))
		if err != nil {
			return err
		}

		printRunSummary(result)

		if runGeoJSON != "" {
			features, err := st.ListFeatures(ctx)
			if err != nil {
				return err
			}
			if err := export.WriteGeoJSON(features, result.Points, export.DefaultStyles, runGeoJSON); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", runGeoJSON)
		}
		return nil
	},
}

func init() {
	runLabelCmd.Flags().StringVar(&runName, "name", "survey", "run name")
	runLabelCmd.Flags().StringVar(&runLat, "lat", "", "latitude column CSV")
	runLabelCmd.Flags().StringVar(&runLon, "lon", "", "longitude column CSV")
	runLabelCmd.Flags().StringVar(&runVib1, "vib1", "", "vibration channel 1 CSV")
	runLabelCmd.Flags().StringVar(&runVib2, "vib2", "", "vibration channel 2 CSV")
	runLabelCmd.Flags().StringVar(&runSpeed, "speed", "", "speed column CSV (optional)")
	runLabelCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "proximity threshold in meters (default from config)")
	runLabelCmd.Flags().IntVar(&runWorkers, "workers", 0, "labeling workers (default from config)")
	runLabelCmd.Flags().BoolVar(&runNearest, "nearest", false, "label by nearest feature instead of first match")
	runLabelCmd.Flags().StringVar(&runGeoJSON, "geojson", "", "also write the labeled run as GeoJSON to this path")

	runCmd.AddCommand(runLabelCmd)
	rootCmd.AddCommand(runCmd)
}
