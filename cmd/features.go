package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/ingest"
	"github.com/trackside-analytics/railscan-cli/internal/model"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Manage the reference infrastructure feature set",
}

var (
	featuresBridges    string
	featuresRailJoints string
	featuresTurnouts   string
	featuresShapefile  string
	featuresCatField   string
)

// featureCSVPaths merges command-line CSV paths over the configured
// ingest.features mapping.
func featureCSVPaths() map[model.Category]string {
	paths := map[model.Category]string{}
	for _, cat := range model.FeatureCategories {
		if p := cfg.Ingest.FeaturePath(string(cat)); p != "" {
			paths[cat] = p
		}
	}
	if featuresBridges != "" {
		paths[model.CategoryBridge] = featuresBridges
	}
	if featuresRailJoints != "" {
		paths[model.CategoryRailJoint] = featuresRailJoints
	}
	if featuresTurnouts != "" {
		paths[model.CategoryTurnout] = featuresTurnouts
	}
	return paths
}

var featuresImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import reference features from CSV files or a shapefile",
	Long:  "Replaces the stored feature set with coordinates loaded from per-category CSV files (--bridges/--rail-joints/--turnouts) or from a point shapefile (--shapefile). Import order fixes the labeler's scan order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			features []model.Feature
			err      error
		)
		switch {
		case featuresShapefile != "":
			features, err = ingest.LoadFeatureShapefile(featuresShapefile, featuresCatField)
		default:
			paths := featureCSVPaths()
			if len(paths) == 0 {
				return eris.New("no input given: pass --shapefile, a category CSV flag, or configure ingest.features")
			}
			features, err = ingest.LoadFeatureSet(paths)
		}
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ReplaceFeatures(ctx, features)
		if err != nil {
			return err
		}
		zap.L().Info("features imported", zap.Int("count", n))
		fmt.Printf("Imported %d features\n", n)
		return nil
	},
}

var featuresListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show stored feature counts per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountFeaturesByCategory(ctx)
		if err != nil {
			return err
		}

		total := 0
		for _, cat := range model.FeatureCategories {
			fmt.Printf("%-10s %d\n", cat, counts[cat])
			total += counts[cat]
		}
		fmt.Printf("%-10s %d\n", "total", total)
		return nil
	},
}

func init() {
	featuresImportCmd.Flags().StringVar(&featuresBridges, "bridges", "", "bridge coordinates CSV")
	featuresImportCmd.Flags().StringVar(&featuresRailJoints, "rail-joints", "", "rail joint coordinates CSV")
	featuresImportCmd.Flags().StringVar(&featuresTurnouts, "turnouts", "", "turnout coordinates CSV")
	featuresImportCmd.Flags().StringVar(&featuresShapefile, "shapefile", "", "point shapefile with a category attribute")
	featuresImportCmd.Flags().StringVar(&featuresCatField, "category-field", "category", "shapefile attribute holding the category name")

	featuresCmd.AddCommand(featuresImportCmd)
	featuresCmd.AddCommand(featuresListCmd)
	rootCmd.AddCommand(featuresCmd)
}
