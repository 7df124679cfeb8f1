package main

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sahel-analytics/epicast/internal/boundary"
	"github.com/sahel-analytics/epicast/internal/catalog"
	"github.com/sahel-analytics/epicast/internal/config"
	"github.com/sahel-analytics/epicast/internal/epi"
	"github.com/sahel-analytics/epicast/internal/fusion"
	"github.com/sahel-analytics/epicast/internal/model"
	"github.com/sahel-analytics/epicast/internal/raster"
	"github.com/sahel-analytics/epicast/internal/temporal"
)

// loadRegistry loads the district boundaries. Zipped shapefiles are
// extracted next to the archive before loading.
func loadRegistry() (*boundary.Registry, error) {
	b := cfg.Boundary
	if b.Shapefile == "" {
		return nil, eris.New("boundary.shapefile not configured")
	}
	opts := boundary.Options{
		NameField:  b.NameField,
		StateField: b.StateField,
		SourceEPSG: b.SourceEPSG,
		TargetEPSG: b.TargetEPSG,
	}
	if strings.EqualFold(filepath.Ext(b.Shapefile), ".zip") {
		dest := strings.TrimSuffix(b.Shapefile, filepath.Ext(b.Shapefile))
		return boundary.LoadArchive(b.Shapefile, dest, opts)
	}
	return boundary.Load(b.Shapefile, opts)
}

// buildSource turns a source config into a snapshot catalog.
func buildSource(sc config.SourceConfig) (catalog.Source, error) {
	switch sc.Kind {
	case "dir":
		if sc.Dir == "" {
			return nil, eris.New("dir source has no dir configured")
		}
		return catalog.NewDirSource(sc.Dir, sc.EPSG), nil
	case "remote":
		return catalog.NewRemoteSource(catalog.RemoteSourceOptions{
			BaseURL:           sc.URL,
			CacheDir:          sc.CacheDir,
			CadenceDays:       sc.CadenceDays,
			EPSG:              sc.EPSG,
			RequestsPerSecond: sc.RequestsPerSecond,
		})
	default:
		return nil, eris.Errorf("unknown source kind %q (want dir or remote)", sc.Kind)
	}
}

func buildVariableSpecs() ([]temporal.VariableSpec, error) {
	specs := make([]temporal.VariableSpec, 0, len(cfg.Vars))
	for _, v := range cfg.Vars {
		reducer, err := temporal.ParseReducer(v.Reducer)
		if err != nil {
			return nil, eris.Wrapf(err, "variable %s", v.Name)
		}
		src, err := buildSource(v.Source)
		if err != nil {
			return nil, eris.Wrapf(err, "variable %s", v.Name)
		}
		column := v.Column
		if column == "" {
			column = v.Name
		}
		specs = append(specs, temporal.VariableSpec{
			Variable: v.Name,
			Column:   column,
			Reducer:  reducer,
			Source:   src,
		})
	}
	return specs, nil
}

const lulcVariable = "lulc"

func buildStaticOptions() (temporal.StaticOptions, error) {
	paths := make(map[string]string, len(cfg.Statics.Layers)+1)
	var opts temporal.StaticOptions

	for _, l := range cfg.Statics.Layers {
		paths[l.Name] = l.Path
	}
	if cfg.Statics.LULC.Path != "" {
		paths[lulcVariable] = cfg.Statics.LULC.Path
	}
	src := catalog.NewStaticSource(paths, cfg.Statics.EPSG)

	for _, l := range cfg.Statics.Layers {
		column := l.Column
		if column == "" {
			column = l.Name
		}
		opts.Specs = append(opts.Specs, temporal.StaticSpec{
			Variable: l.Name,
			Column:   column,
			Source:   src,
		})
	}
	if cfg.Statics.LULC.Path != "" {
		classes, err := cfg.Statics.LULC.Classes()
		if err != nil {
			return temporal.StaticOptions{}, err
		}
		opts.LULC = &temporal.LULCSpec{
			Variable: lulcVariable,
			Source:   src,
			Classes:  classes,
		}
	}
	return opts, nil
}

func buildSocioSpecs() ([]temporal.SocioSpec, error) {
	paths := make(map[string]string, len(cfg.Socio.Layers))
	for _, l := range cfg.Socio.Layers {
		paths[l.Name] = l.Path
	}
	src := catalog.NewStaticSource(paths, cfg.Socio.EPSG)

	specs := make([]temporal.SocioSpec, 0, len(cfg.Socio.Layers))
	for _, l := range cfg.Socio.Layers {
		stat, err := raster.ParseStat(l.Stat)
		if err != nil {
			return nil, eris.Wrapf(err, "socio layer %s", l.Name)
		}
		column := l.Column
		if column == "" {
			column = l.Name
		}
		specs = append(specs, temporal.SocioSpec{
			Variable: l.Name,
			Column:   column,
			Stat:     stat,
			Source:   src,
		})
	}
	return specs, nil
}

// staticColumns mirrors the column set ExtractStatic will emit.
func staticColumns(opts temporal.StaticOptions) []string {
	var cols []string
	for _, s := range opts.Specs {
		cols = append(cols, s.Column)
	}
	if opts.LULC != nil {
		for _, c := range opts.LULC.Classes {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// buildSchema fixes the fused column contract: environmental columns,
// static and socio district columns, then the derived features whose
// inputs are present.
func buildSchema(g model.Granularity, envCols, staticCols, socioCols []string) model.Schema {
	extra := append(append([]string{}, staticCols...), socioCols...)

	if cfg.Fusion.Derived {
		has := func(cols []string, c string) bool {
			for _, x := range cols {
				if x == c {
					return true
				}
			}
			return false
		}
		if has(envCols, "lst_day_mean") && has(envCols, "lst_night_mean") {
			extra = append(extra, "lst_diurnal_range", "lst_mean")
		}
		if has(staticCols, "lulc_built_prop") {
			extra = append(extra, "urban_index")
		}
		if has(staticCols, "lulc_water_prop") {
			extra = append(extra, "water_access_proxy")
		}
	}

	return model.Schema{
		Granularity:  g,
		EnvColumns:   append([]string{}, envCols...),
		ExtraColumns: extra,
		Lags:         cfg.Fusion.Lags,
		Windows:      cfg.Fusion.Windows,
	}
}

func fusionOptions(schema model.Schema) fusion.Options {
	imp := fusion.Imputation{
		CampaignMean: cfg.Fusion.Imputation.CampaignMean,
		Zero:         cfg.Fusion.Imputation.Zero,
		Defaults:     cfg.Fusion.Imputation.Defaults,
	}
	return fusion.Options{
		Schema:     schema,
		Imputation: imp,
		Derived:    cfg.Fusion.Derived,
	}
}

// epiData is the parsed line list and its per-period aggregation.
type epiData struct {
	records []model.EpiRecord
	report  *epi.ParseReport
	cases   *model.CaseTable
}

func loadLineList(ctx context.Context, g model.Granularity) (*epiData, error) {
	e := cfg.Epi
	if e.Path == "" {
		return nil, eris.New("epi.path not configured")
	}
	records, report, err := epi.ReadLineList(ctx, e.Path, epi.ParseOptions{
		Roles: epi.ColumnRoles{
			Date:     e.DateColumn,
			District: e.DistrictColumn,
			State:    e.StateColumn,
		},
		DateFormats: e.DateFormats,
		SheetName:   e.Sheet,
	})
	if err != nil {
		return nil, err
	}
	return &epiData{
		records: records,
		report:  report,
		cases:   epi.AggregateByPeriod(records, g),
	}, nil
}

const rangeFormat = "2006-01-02"

// resolveRange returns the extraction date range: configured bounds win,
// and any missing bound falls back to the span of the line list.
func resolveRange(records []model.EpiRecord) (time.Time, time.Time, error) {
	spanStart, spanEnd, haveSpan := epi.DateSpan(records)

	start, end := spanStart, spanEnd
	if cfg.Extract.Start != "" {
		t, err := time.ParseInLocation(rangeFormat, cfg.Extract.Start, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrap(err, "parse extract.start")
		}
		start = t
	} else if !haveSpan {
		return time.Time{}, time.Time{}, eris.New("extract.start not configured and the line list is empty")
	}
	if cfg.Extract.End != "" {
		t, err := time.ParseInLocation(rangeFormat, cfg.Extract.End, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrap(err, "parse extract.end")
		}
		end = t
	} else if !haveSpan {
		return time.Time{}, time.Time{}, eris.New("extract.end not configured and the line list is empty")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, eris.Errorf("extraction range ends %s before it starts %s",
			end.Format(rangeFormat), start.Format(rangeFormat))
	}
	return start, end, nil
}
