package temporal

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/boundary"
	"github.com/sahel-analytics/epicast/internal/catalog"
	"github.com/sahel-analytics/epicast/internal/model"
	"github.com/sahel-analytics/epicast/internal/raster"
)

// SocioSpec binds one socio-economic output column to a layer and the
// zonal statistic that summarizes it (rwi mean/std, population sum).
type SocioSpec struct {
	Variable string
	Column   string
	Stat     raster.Stat
	Source   catalog.Source
}

// ExtractSocio computes socio-economic columns per district. Unlike the
// environmental layers, a district with no valid pixels does not get the
// zero sentinel: its columns are left absent so the fusion layer can
// impute them, since a literal zero wealth index or population would be
// a plausible but wrong value.
func ExtractSocio(ctx context.Context, registry *boundary.Registry, specs []SocioSpec) (*model.DistrictTable, error) {
	if len(specs) == 0 {
		return nil, eris.New("temporal: no socio-economic layers configured")
	}
	log := zap.L().With(zap.String("component", "temporal"))

	columns := make([]string, 0, len(specs))
	for _, s := range specs {
		columns = append(columns, s.Column)
	}
	table := &model.DistrictTable{
		Columns: columns,
		Rows:    make(map[string]map[string]float64, registry.Len()),
	}
	for _, d := range registry.Districts() {
		table.Rows[d.Name] = make(map[string]float64, len(columns))
	}

	for _, spec := range specs {
		g, err := loadSingle(ctx, spec.Source, spec.Variable)
		if err != nil {
			return nil, err
		}
		missing := 0
		for _, d := range registry.Districts() {
			s, err := raster.ZonalStats(g, d.Geom, d.EPSG, []raster.Stat{spec.Stat})
			if err != nil {
				return nil, eris.Wrapf(err, "temporal: zonal stats for %s / %s", d.Name, spec.Column)
			}
			if s.ValidPixels == 0 {
				missing++
				continue
			}
			table.Rows[d.Name][spec.Column] = statValue(s, spec.Stat)
		}
		if missing > 0 {
			log.Warn("districts without coverage, leaving column for imputation",
				zap.String("column", spec.Column),
				zap.Int("districts", missing),
			)
		}
	}

	log.Info("socio-economic extraction complete",
		zap.Int("districts", registry.Len()),
		zap.Int("columns", len(columns)),
	)
	return table, nil
}

func statValue(s model.ZonalSummary, stat raster.Stat) float64 {
	switch stat {
	case raster.StatMin:
		return s.Min
	case raster.StatMax:
		return s.Max
	case raster.StatStd:
		return s.Std
	case raster.StatSum:
		return s.Sum
	case raster.StatMedian:
		return s.Median
	default:
		return s.Mean
	}
}
