package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/dataset"
	"github.com/sahel-analytics/epicast/internal/temporal"
)

var socioCmd = &cobra.Command{
	Use:   "socio",
	Short: "Extract socio-economic district features",
	Long:  "Summarizes wealth-index and population rasters per district. Uncovered districts are left blank for fusion-time imputation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := loadRegistry()
		if err != nil {
			return err
		}
		specs, err := buildSocioSpecs()
		if err != nil {
			return err
		}

		table, err := temporal.ExtractSocio(cmd.Context(), registry, specs)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(cfg.Output.Dir, "socio_features.csv")
		if err := dataset.WriteDistrictCSV(path, table); err != nil {
			return err
		}
		zap.L().Info("wrote socio-economic features", zap.String("path", path), zap.Int("districts", len(table.Rows)))
		return nil
	},
}

func init() { rootCmd.AddCommand(socioCmd) }
