package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/dataset"
	"github.com/sahel-analytics/epicast/internal/temporal"
)

var staticCmd = &cobra.Command{
	Use:   "static",
	Short: "Extract time-invariant terrain and land-cover features",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		opts, err := buildStaticOptions()
		if err != nil {
			return err
		}

		table, err := temporal.ExtractStatic(cmd.Context(), registry, opts)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(cfg.Output.Dir, "static_features.csv")
		if err := dataset.WriteDistrictCSV(path, table); err != nil {
			return err
		}
		zap.L().Info("wrote static features", zap.String("path", path), zap.Int("districts", len(table.Rows)))
		return nil
	},
}

func init() { rootCmd.AddCommand(staticCmd) }
