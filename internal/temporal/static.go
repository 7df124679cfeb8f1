package temporal

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/boundary"
	"github.com/sahel-analytics/epicast/internal/catalog"
	"github.com/sahel-analytics/epicast/internal/model"
	"github.com/sahel-analytics/epicast/internal/raster"
)

// StaticSpec binds one output column to a time-invariant continuous
// layer (elevation, slope, aspect). The column value is the district's
// zonal mean of the layer.
type StaticSpec struct {
	Variable string
	Column   string
	Source   catalog.Source
}

// LULCSpec describes a categorical land-cover layer whose per-district
// class proportions become feature columns. Every configured class is
// emitted for every district, zero-filled where absent.
type LULCSpec struct {
	Variable string
	Source   catalog.Source
	Classes  []raster.Class
}

// StaticOptions configures ExtractStatic.
type StaticOptions struct {
	Specs []StaticSpec
	LULC  *LULCSpec
}

// ExtractStatic computes the time-invariant feature columns for every
// district in the registry: zonal means of the continuous layers, then
// land-cover class proportions. Districts with no valid pixels get the
// zero sentinel in every column.
func ExtractStatic(ctx context.Context, registry *boundary.Registry, opts StaticOptions) (*model.DistrictTable, error) {
	log := zap.L().With(zap.String("component", "temporal"))

	var columns []string
	for _, s := range opts.Specs {
		columns = append(columns, s.Column)
	}
	if opts.LULC != nil {
		for _, c := range opts.LULC.Classes {
			columns = append(columns, c.Name)
		}
	}
	if len(columns) == 0 {
		return nil, eris.New("temporal: no static layers configured")
	}

	table := &model.DistrictTable{
		Columns: columns,
		Rows:    make(map[string]map[string]float64, registry.Len()),
	}
	for _, d := range registry.Districts() {
		table.Rows[d.Name] = make(map[string]float64, len(columns))
	}

	for _, spec := range opts.Specs {
		g, err := loadSingle(ctx, spec.Source, spec.Variable)
		if err != nil {
			return nil, err
		}
		for _, d := range registry.Districts() {
			s, err := raster.ZonalStats(g, d.Geom, d.EPSG, []raster.Stat{raster.StatMean})
			if err != nil {
				return nil, eris.Wrapf(err, "temporal: zonal stats for %s / %s", d.Name, spec.Column)
			}
			table.Rows[d.Name][spec.Column] = s.Mean
		}
	}

	if opts.LULC != nil {
		g, err := loadSingle(ctx, opts.LULC.Source, opts.LULC.Variable)
		if err != nil {
			return nil, err
		}
		for _, d := range registry.Districts() {
			props, valid, err := raster.ClassProportions(g, d.Geom, d.EPSG, opts.LULC.Classes)
			if err != nil {
				return nil, eris.Wrapf(err, "temporal: class proportions for %s", d.Name)
			}
			if valid == 0 {
				log.Warn("district has no valid land-cover pixels", zap.String("district", d.Name))
			}
			for name, v := range props {
				table.Rows[d.Name][name] = v
			}
		}
	}

	log.Info("static extraction complete",
		zap.Int("districts", registry.Len()),
		zap.Int("columns", len(columns)),
	)
	return table, nil
}

// loadSingle resolves a static variable to exactly one grid.
func loadSingle(ctx context.Context, src catalog.Source, variable string) (*raster.Grid, error) {
	snaps, err := src.Query(ctx, variable, time.Time{}, time.Time{})
	if err != nil {
		return nil, eris.Wrapf(err, "temporal: query static layer %s", variable)
	}
	if len(snaps) != 1 {
		return nil, eris.Errorf("temporal: static layer %s resolved to %d snapshots, want 1", variable, len(snaps))
	}
	return raster.ReadASCIIGrid(snaps[0].Path, snaps[0].EPSG)
}
