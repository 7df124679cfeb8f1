package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/boundary"
	"github.com/sahel-analytics/epicast/internal/dataset"
	"github.com/sahel-analytics/epicast/internal/epi"
	"github.com/sahel-analytics/epicast/internal/ledger"
	"github.com/sahel-analytics/epicast/internal/model"
	"github.com/sahel-analytics/epicast/internal/temporal"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract environmental features per district and period",
	Long:  "Runs the raster extraction over the configured date range, checkpointing each district so an interrupted run resumes where it stopped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		table, report, _, err := extractWithLedger(ctx, registry, specs, g, start, end, true)
		if err != nil {
			return err
		}

		zap.L().Info("extraction finished",
			zap.Int("rows", len(table.Rows)),
			zap.Int("periods", report.Periods),
			zap.Int("districts", report.Districts),
			zap.Int("degraded_units", report.DegradedUnits),
		)
		return nil
	},
}

func init() { rootCmd.AddCommand(extractCmd) }

// scopeRegistry narrows extraction to the districts that report cases.
// An empty line list keeps the whole registry, and districts reported
// but absent from the boundary file are warned about by Filter.
func scopeRegistry(registry *boundary.Registry, records []model.EpiRecord) *boundary.Registry {
	affected := epi.AffectedDistricts(records)
	if len(affected) == 0 {
		return registry
	}
	sub, _ := registry.Filter(affected)
	if sub.Len() == 0 {
		return registry
	}
	return sub
}

// checkpointPath names a district's checkpoint file.
func checkpointPath(dir, district string) string {
	name := strings.ToLower(strings.ReplaceAll(district, " ", "_"))
	return filepath.Join(dir, name+".csv")
}

// extractWithLedger runs the environmental extraction district by
// district against the work-unit ledger. Districts already done load
// from their checkpoints; a corrupt checkpoint resets the unit and
// recomputes. With compute false, pending units are an error instead
// of work.
func extractWithLedger(ctx context.Context, registry *boundary.Registry, specs []temporal.VariableSpec, g model.Granularity, start, end time.Time, compute bool) (*model.EnvTable, *temporal.Report, string, error) {
	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, nil, "", err
	}
	defer led.Close() //nolint:errcheck
	if err := led.Migrate(ctx); err != nil {
		return nil, nil, "", err
	}

	run, found, err := led.FindRun(ctx, string(g), start, end)
	if err != nil {
		return nil, nil, "", err
	}
	if !found {
		if run, err = led.CreateRun(ctx, string(g), start, end); err != nil {
			return nil, nil, "", err
		}
	}
	if err := led.EnsureUnits(ctx, run.ID, registry.Names()); err != nil {
		return nil, nil, "", err
	}

	if err := os.MkdirAll(cfg.Extract.CheckpointDir, 0o755); err != nil {
		return nil, nil, "", eris.Wrapf(err, "create checkpoint dir %s", cfg.Extract.CheckpointDir)
	}

	periods, err := temporal.Periods(g, start, end)
	if err != nil {
		return nil, nil, "", err
	}

	columns := make([]string, 0, len(specs))
	for _, s := range specs {
		columns = append(columns, s.Column)
	}
	table := &model.EnvTable{Granularity: g, Columns: columns}
	report := &temporal.Report{
		Periods:   len(periods),
		Districts: registry.Len(),
		Columns:   len(columns),
	}
	log := zap.L().With(zap.String("component", "extract"))

	units, err := led.Units(ctx, run.ID)
	if err != nil {
		return nil, nil, "", err
	}
	for _, u := range units {
		if _, ok := registry.Get(u.District); !ok {
			// Unit from a previous, wider run scope.
			continue
		}

		if u.Status == ledger.StatusDone {
			rows, err := dataset.ReadCheckpoint(u.Checkpoint, columns, len(periods))
			if err == nil {
				log.Debug("district resumed from checkpoint", zap.String("district", u.District))
				table.Rows = append(table.Rows, rows...)
				continue
			}
			log.Warn("checkpoint unreadable, recomputing district",
				zap.String("district", u.District),
				zap.Error(err),
			)
			if err := led.Reset(ctx, run.ID, u.District); err != nil {
				return nil, nil, "", err
			}
		}

		if !compute {
			return nil, nil, "", eris.Errorf("district %s is not extracted yet, run extract first", u.District)
		}

		sub, _ := registry.Filter([]string{u.District})
		ex := temporal.NewExtractor(sub, specs, temporal.Options{
			Granularity: g,
			Start:       start,
			End:         end,
			Workers:     cfg.Extract.Workers,
		})
		part, partReport, err := ex.Run(ctx)
		if err != nil {
			return nil, nil, "", err
		}
		report.DegradedUnits += partReport.DegradedUnits

		cp := checkpointPath(cfg.Extract.CheckpointDir, u.District)
		if err := dataset.WriteCheckpoint(cp, columns, part.Rows); err != nil {
			return nil, nil, "", err
		}
		if err := led.MarkDone(ctx, run.ID, u.District, cp); err != nil {
			return nil, nil, "", err
		}
		table.Rows = append(table.Rows, part.Rows...)
	}

	if err := led.FinishRun(ctx, run.ID); err != nil {
		return nil, nil, "", err
	}
	return table, report, run.ID, nil
}
