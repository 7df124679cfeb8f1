package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/boundary"
	"github.com/sahel-analytics/epicast/internal/dataset"
	"github.com/sahel-analytics/epicast/internal/fusion"
	"github.com/sahel-analytics/epicast/internal/model"
	"github.com/sahel-analytics/epicast/internal/temporal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline end to end",
	Long:  "Parses the line list, extracts environmental, static, and socio-economic features, fuses everything into the feature table, and writes the configured outputs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), true)
	},
}

func init() { rootCmd.AddCommand(runCmd) }

// runPipeline drives every stage. With compute false the environmental
// stage only accepts finished checkpoints, which is the fuse command's
// contract.
func runPipeline(ctx context.Context, compute bool) error {
	g, err := model.ParseGranularity(cfg.Extract.Granularity)
	if err != nil {
		return err
	}
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	data, err := loadLineList(ctx, g)
	if err != nil {
		return err
	}
	start, end, err := resolveRange(data.records)
	if err != nil {
		return err
	}
	registry = scopeRegistry(registry, data.records)

	specs, err := buildVariableSpecs()
	if err != nil {
		return err
	}
	env, extractReport, runID, err := extractWithLedger(ctx, registry, specs, g, start, end, compute)
	if err != nil {
		return err
	}

	staticOpts, err := buildStaticOptions()
	if err != nil {
		return err
	}
	var staticTable *model.DistrictTable
	if len(staticOpts.Specs) > 0 || staticOpts.LULC != nil {
		if staticTable, err = temporal.ExtractStatic(ctx, registry, staticOpts); err != nil {
			return err
		}
	}

	var socioTable *model.DistrictTable
	var socioCols []string
	if len(cfg.Socio.Layers) > 0 {
		socioSpecs, err := buildSocioSpecs()
		if err != nil {
			return err
		}
		for _, s := range socioSpecs {
			socioCols = append(socioCols, s.Column)
		}
		if socioTable, err = temporal.ExtractSocio(ctx, registry, socioSpecs); err != nil {
			return err
		}
	}

	schema := buildSchema(g, env.Columns, staticColumns(staticOpts), socioCols)
	features, fuseReport, err := fusion.Fuse(env, staticTable, socioTable, data.cases, fusionOptions(schema))
	if err != nil {
		return err
	}

	return writeOutputs(ctx, registry, features, summaryFor(runID, data, extractReport, fuseReport))
}

func summaryFor(runID string, data *epiData, extract *temporal.Report, fuse *fusion.Report) dataset.Summary {
	var s dataset.Summary
	s.RunID = runID
	s.LineList.Total = data.report.Total
	s.LineList.Kept = data.report.Kept
	s.LineList.BadDate = data.report.BadDate
	s.LineList.MissingDistrict = data.report.MissingDistrict
	s.Extraction.Periods = extract.Periods
	s.Extraction.Districts = extract.Districts
	s.Extraction.DegradedUnits = extract.DegradedUnits
	s.Fusion.Rows = fuse.Rows
	s.Fusion.ZeroFilledRows = fuse.ZeroFilledRows
	s.Fusion.ImputedValues = fuse.ImputedValues
	s.Fusion.OutOfGridCases = fuse.OutOfGridCases
	return s
}

func writeOutputs(ctx context.Context, registry *boundary.Registry, features *model.FeatureTable, summary dataset.Summary) error {
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return eris.Wrapf(err, "create output dir %s", cfg.Output.Dir)
	}

	if cfg.Output.CSV {
		path := filepath.Join(cfg.Output.Dir, "features.csv")
		if err := dataset.WriteCSV(path, features); err != nil {
			return err
		}
		summary.Outputs = append(summary.Outputs, path)
	}
	if cfg.Output.XLSX {
		path := filepath.Join(cfg.Output.Dir, "features.xlsx")
		if err := dataset.WriteXLSX(path, features); err != nil {
			return err
		}
		summary.Outputs = append(summary.Outputs, path)
	}
	if cfg.Output.GeoJSON {
		path := filepath.Join(cfg.Output.Dir, "districts.geojson")
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		if err := registry.WriteGeoJSON(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrapf(err, "close %s", path)
		}
		summary.Outputs = append(summary.Outputs, path)
	}
	if url := cfg.Output.Postgres.URL; url != "" {
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return eris.Wrap(err, "connect postgres")
		}
		defer pool.Close()
		n, err := dataset.Materialize(ctx, pool, cfg.Output.Postgres.Table, features)
		if err != nil {
			return err
		}
		zap.L().Info("materialized features",
			zap.String("table", cfg.Output.Postgres.Table),
			zap.Int64("rows", n),
		)
		summary.Outputs = append(summary.Outputs, "postgres:"+cfg.Output.Postgres.Table)
	}

	return dataset.WriteSummary(filepath.Join(cfg.Output.Dir, "summary.json"), summary)
}
