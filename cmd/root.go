package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "epicast",
	Short: "Spatio-temporal feature pipeline for cholera forecasting",
	Long:  "Fuses epidemiological line lists, environmental rasters, and socio-economic layers into weekly per-district feature rows.",
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
