package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackside-analytics/railscan-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "railscan",
	Short: "Railway track-condition survey toolkit",
	Long:  "Labels ride recordings against known track infrastructure, windows vibration data into segments, and serves the results as a map.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
