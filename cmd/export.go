package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/export"
	"github.com/trackside-analytics/railscan-cli/internal/pipeline"
)

var (
	exportRunID  string
	exportFormat string
	exportOut    string
	exportStyles string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a survey run as CSV, GeoJSON or an XLSX report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(ctx, exportRunID)
		if err != nil {
			return err
		}
		points, err := st.ListLabeledPoints(ctx, run.ID)
		if err != nil {
			return err
		}

		switch exportFormat {
		case "csv":
			err = export.WritePointsCSV(points, exportOut)

		case "geojson":
			styles, sErr := export.LoadStyles(exportStyles)
			if sErr != nil {
				return sErr
			}
			features, fErr := st.ListFeatures(ctx)
			if fErr != nil {
				return fErr
			}
			err = export.WriteGeoJSON(features, points, styles, exportOut)

		case "xlsx":
			segments, sErr := st.ListSegments(ctx, run.ID)
			if sErr != nil {
				return sErr
			}
			err = export.WriteXLSXReport(export.Report{
				Run:      run,
				Counts:   pipeline.CountLabels(points),
				Segments: segments,
			}, exportOut)

		default:
			return eris.Errorf("unsupported format: %s (want csv, geojson or xlsx)", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export written",
			zap.String("run_id", run.ID),
			zap.String("format", exportFormat),
			zap.String("path", exportOut),
		)
		fmt.Printf("Wrote %s\n", exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "run ID to export")
	exportCmd.Flags().StringVar(&exportFormat, "format", "geojson", "output format: csv, geojson or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path")
	exportCmd.Flags().StringVar(&exportStyles, "styles", "", "marker style overrides YAML (geojson only)")
	_ = exportCmd.MarkFlagRequired("run")
	_ = exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(exportCmd)
}
