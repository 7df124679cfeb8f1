// Package temporal turns dated raster snapshots into per-district,
// per-period environmental feature rows: snapshots are reduced per pixel
// across each period, then summarized per district with zonal statistics.
package temporal

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sahel-analytics/epicast/internal/boundary"
	"github.com/sahel-analytics/epicast/internal/catalog"
	"github.com/sahel-analytics/epicast/internal/model"
	"github.com/sahel-analytics/epicast/internal/raster"
)

// VariableSpec binds one output environmental column to a catalog
// variable and the temporal reducer that collapses its snapshots. Two
// columns may share a variable: weekly precipitation yields both a sum
// column and a mean column from the same daily files.
type VariableSpec struct {
	Variable string
	Column   string
	Reducer  Reducer
	Source   catalog.Source
}

// Options configures an extraction run.
type Options struct {
	Granularity model.Granularity
	Start, End  time.Time

	// Workers bounds the district-level parallelism within a period.
	// Default 4.
	Workers int
}

// Report summarizes what an extraction produced, including the work
// units (period, column) that had no snapshots and fell back to the
// zero-sentinel summary.
type Report struct {
	Periods       int
	Districts     int
	Columns       int
	DegradedUnits int
}

// Extractor computes an environmental feature table for every district
// in a registry.
type Extractor struct {
	registry *boundary.Registry
	specs    []VariableSpec
	opts     Options
	log      *zap.Logger
}

// NewExtractor creates an extractor over the given registry and specs.
func NewExtractor(registry *boundary.Registry, specs []VariableSpec, opts Options) *Extractor {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Extractor{
		registry: registry,
		specs:    specs,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "temporal")),
	}
}

// Run extracts one row per (district, period). Row order is period-major,
// district name ascending within a period, so repeated runs produce
// byte-identical tables. A (period, column) with no snapshots, a failed
// archive query, or an unreadable grid degrades to the zero sentinel and
// is counted in the report instead of failing the run.
func (e *Extractor) Run(ctx context.Context) (*model.EnvTable, *Report, error) {
	if len(e.specs) == 0 {
		return nil, nil, eris.New("temporal: no variables configured")
	}

	periods, err := Periods(e.opts.Granularity, e.opts.Start, e.opts.End)
	if err != nil {
		return nil, nil, err
	}
	districts := e.registry.Districts()

	columns := make([]string, 0, len(e.specs))
	for _, s := range e.specs {
		columns = append(columns, s.Column)
	}

	table := &model.EnvTable{Granularity: e.opts.Granularity, Columns: columns}
	report := &Report{Periods: len(periods), Districts: len(districts), Columns: len(columns)}

	for _, p := range periods {
		composites, degraded := e.composites(ctx, p)
		report.DegradedUnits += degraded

		rows := make([]model.EnvRow, len(districts))
		perDistrict := make([]int, len(districts))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Workers)
		for i, d := range districts {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows[i], perDistrict[i] = e.districtRow(d, p, composites)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		for _, n := range perDistrict {
			report.DegradedUnits += n
		}
		table.Rows = append(table.Rows, rows...)
	}

	e.log.Info("extraction complete",
		zap.Int("periods", report.Periods),
		zap.Int("districts", report.Districts),
		zap.Int("rows", len(table.Rows)),
		zap.Int("degraded_units", report.DegradedUnits),
	)
	return table, report, nil
}

// composites builds the per-period composite grid for each spec. A nil
// entry marks a column that degraded to the zero sentinel for this
// period: no snapshots, a failed archive query, an unreadable grid, or a
// shape mismatch across the period's snapshots. Each degraded
// (period, column) is counted; only cancellation can abort the batch.
func (e *Extractor) composites(ctx context.Context, p Period) (map[string]*raster.Grid, int) {
	cache := make(map[string]*raster.Grid)
	load := func(snap catalog.Snapshot) (*raster.Grid, error) {
		if g, ok := cache[snap.Path]; ok {
			return g, nil
		}
		g, err := raster.ReadASCIIGrid(snap.Path, snap.EPSG)
		if err != nil {
			return nil, err
		}
		cache[snap.Path] = g
		return g, nil
	}

	out := make(map[string]*raster.Grid, len(e.specs))
	degraded := 0
	degrade := func(spec VariableSpec, reason string, err error) {
		e.log.Warn("period degraded to zero sentinel",
			zap.String("column", spec.Column),
			zap.Int("year", p.Year),
			zap.Int("period", p.Index),
			zap.String("reason", reason),
			zap.Error(err),
		)
		out[spec.Column] = nil
		degraded++
	}

	for _, spec := range e.specs {
		snaps, err := spec.Source.Query(ctx, spec.Variable, p.Start, p.End)
		if err != nil {
			degrade(spec, "query failed", err)
			continue
		}
		if len(snaps) == 0 {
			degrade(spec, "no snapshots", nil)
			continue
		}

		grids := make([]*raster.Grid, 0, len(snaps))
		for _, snap := range snaps {
			g, err := load(snap)
			if err != nil {
				degrade(spec, "unreadable snapshot", err)
				grids = nil
				break
			}
			grids = append(grids, g)
		}
		if grids == nil {
			continue
		}
		composite, err := Composite(grids, spec.Reducer)
		if err != nil {
			degrade(spec, "reduce failed", err)
			continue
		}
		out[spec.Column] = composite
	}
	return out, degraded
}

// districtRow summarizes each column's composite over one district. A
// zonal-statistics failure zeroes that cell and is counted; it never
// aborts the other districts.
func (e *Extractor) districtRow(d *model.District, p Period, composites map[string]*raster.Grid) (model.EnvRow, int) {
	row := model.EnvRow{
		District: d.Name,
		State:    d.State,
		Year:     p.Year,
		Period:   p.Index,
		Start:    p.Start,
		End:      p.End,
		Values:   make(map[string]float64, len(e.specs)),
	}
	degraded := 0
	for _, spec := range e.specs {
		g := composites[spec.Column]
		if g == nil {
			row.Values[spec.Column] = 0
			continue
		}
		s, err := raster.ZonalStats(g, d.Geom, d.EPSG, []raster.Stat{raster.StatMean})
		if err != nil {
			e.log.Warn("district degraded to zero sentinel",
				zap.String("district", d.Name),
				zap.String("column", spec.Column),
				zap.Error(err),
			)
			row.Values[spec.Column] = 0
			degraded++
			continue
		}
		row.Values[spec.Column] = s.Mean
	}
	return row, degraded
}
