// Package fusion joins the environmental, static, socio-economic, and
// case tables into the fused feature table, then derives the lag and
// rolling case features.
package fusion

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/model"
)

// Imputation says how to fill socio-economic columns for districts the
// layers did not cover. Columns in CampaignMean get the mean of the
// covered districts; Zero columns get 0; Defaults get a fixed value.
type Imputation struct {
	CampaignMean []string
	Zero         []string
	Defaults     map[string]float64
}

// DefaultImputation mirrors the historical campaign behavior: wealth
// index mean from covered districts, zero spread, and a flat population
// default.
func DefaultImputation() Imputation {
	return Imputation{
		CampaignMean: []string{"rwi_mean"},
		Zero:         []string{"rwi_std"},
		Defaults:     map[string]float64{"population_total": 200000},
	}
}

// Options configures a fusion run.
type Options struct {
	Schema     model.Schema
	Imputation Imputation

	// Derived enables the composite features (lst_diurnal_range,
	// lst_mean, urban_index, water_access_proxy) when their inputs are
	// part of the schema.
	Derived bool
}

// Report summarizes what fusion did to the data.
type Report struct {
	Rows           int
	ZeroFilledRows int // rows on the grid with no reported cases
	ImputedValues  int // socio values filled by policy
	OutOfGridCases int // case cells whose key is not on the temporal grid
}

// Fuse left-joins everything onto the temporal grid: one output row per
// environmental row, cases zero-filled, district-level tables joined by
// name, socio gaps imputed per policy. Output ordering is district
// ascending then period ascending, and lag/rolling features are computed
// per district after zero-fill. A granularity mismatch between the
// tables is a structural error.
func Fuse(env *model.EnvTable, static, socio *model.DistrictTable, cases *model.CaseTable, opts Options) (*model.FeatureTable, *Report, error) {
	if env == nil || len(env.Rows) == 0 {
		return nil, nil, eris.New("fusion: empty environmental table")
	}
	if cases == nil {
		return nil, nil, eris.New("fusion: missing case table")
	}
	if env.Granularity != opts.Schema.Granularity {
		return nil, nil, eris.Errorf("fusion: environmental table is %s but schema is %s", env.Granularity, opts.Schema.Granularity)
	}
	if cases.Granularity != env.Granularity {
		return nil, nil, eris.Errorf("fusion: case table is %s but environmental table is %s", cases.Granularity, env.Granularity)
	}

	imputed := imputedSocio(socio, opts.Imputation)
	report := &Report{}
	for _, n := range imputed.counts {
		report.ImputedValues += n
	}

	grid := make(map[model.PeriodKey]bool, len(env.Rows))
	rows := make([]model.FeatureRow, 0, len(env.Rows))
	for _, er := range env.Rows {
		key := er.Key()
		grid[key] = true

		row := model.FeatureRow{
			District: er.District,
			State:    er.State,
			Year:     er.Year,
			Period:   er.Period,
			Start:    er.Start,
			End:      er.End,
			Env:      make(map[string]float64, len(opts.Schema.EnvColumns)),
			Extra:    make(map[string]float64, len(opts.Schema.ExtraColumns)),
		}
		for _, c := range opts.Schema.EnvColumns {
			row.Env[c] = er.Values[c]
		}
		if static != nil {
			for c, v := range static.Rows[er.District] {
				row.Extra[c] = v
			}
		}
		if vals, ok := imputed.rows[er.District]; ok {
			for c, v := range vals {
				row.Extra[c] = v
			}
		}

		if n, ok := cases.Counts[key]; ok {
			row.CaseCount = n
		} else {
			report.ZeroFilledRows++
		}

		if opts.Derived {
			derive(&row, opts.Schema)
		}
		rows = append(rows, row)
	}

	for key := range cases.Counts {
		if !grid[key] {
			report.OutOfGridCases++
		}
	}
	if report.OutOfGridCases > 0 {
		zap.L().With(zap.String("component", "fusion")).Warn("case cells outside the temporal grid dropped",
			zap.Int("cells", report.OutOfGridCases),
		)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].District != rows[j].District {
			return rows[i].District < rows[j].District
		}
		return rows[i].Start.Before(rows[j].Start)
	})

	addCaseHistory(rows, opts.Schema)
	report.Rows = len(rows)

	return &model.FeatureTable{Schema: opts.Schema, Rows: rows}, report, nil
}

type socioValues struct {
	rows   map[string]map[string]float64
	counts map[string]int // imputed values per district
}

// imputedSocio fills policy columns for districts missing from the socio
// table (or missing individual columns), so every district carries the
// full socio column set.
func imputedSocio(socio *model.DistrictTable, policy Imputation) socioValues {
	out := socioValues{
		rows:   make(map[string]map[string]float64),
		counts: make(map[string]int),
	}
	if socio == nil {
		return out
	}

	means := make(map[string]float64, len(policy.CampaignMean))
	for _, col := range policy.CampaignMean {
		var sum float64
		var n int
		for _, vals := range socio.Rows {
			if v, ok := vals[col]; ok {
				sum += v
				n++
			}
		}
		if n > 0 {
			means[col] = sum / float64(n)
		} else {
			zap.L().With(zap.String("component", "fusion")).Warn("no coverage anywhere for imputation column, using zero",
				zap.String("column", col),
			)
		}
	}

	fill := func(vals map[string]float64, district, col string, v float64) {
		if _, ok := vals[col]; ok {
			return
		}
		vals[col] = v
		out.counts[district]++
	}

	for district, src := range socio.Rows {
		vals := make(map[string]float64, len(socio.Columns))
		for c, v := range src {
			vals[c] = v
		}
		for _, col := range policy.CampaignMean {
			fill(vals, district, col, means[col])
		}
		for _, col := range policy.Zero {
			fill(vals, district, col, 0)
		}
		for col, def := range policy.Defaults {
			fill(vals, district, col, def)
		}
		out.rows[district] = vals
	}
	return out
}

// derive computes composite features from inputs already on the row.
// Each is emitted only when the schema carries its inputs.
func derive(row *model.FeatureRow, schema model.Schema) {
	env := func(c string) (float64, bool) {
		if !contains(schema.EnvColumns, c) {
			return 0, false
		}
		return row.Env[c], true
	}
	extra := func(c string) (float64, bool) {
		if !contains(schema.ExtraColumns, c) {
			return 0, false
		}
		return row.Extra[c], true
	}

	if day, ok := env("lst_day_mean"); ok {
		if night, ok := env("lst_night_mean"); ok {
			row.Extra["lst_diurnal_range"] = day - night
			row.Extra["lst_mean"] = (day + night) / 2
		}
	}
	if built, ok := extra("lulc_built_prop"); ok {
		row.Extra["urban_index"] = built
	}
	if water, ok := extra("lulc_water_prop"); ok {
		row.Extra["water_access_proxy"] = water
	}
}

func contains(cols []string, c string) bool {
	for _, x := range cols {
		if x == c {
			return true
		}
	}
	return false
}

// addCaseHistory fills the lag and rolling columns. rows must already be
// sorted district-major, period ascending; history never crosses a
// district boundary, and periods before the grid start read as zero.
func addCaseHistory(rows []model.FeatureRow, schema model.Schema) {
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].District != rows[start].District {
			districtHistory(rows[start:i], schema)
			start = i
		}
	}
}

func districtHistory(rows []model.FeatureRow, schema model.Schema) {
	for i := range rows {
		rows[i].Lags = make(map[int]int, len(schema.Lags))
		for _, k := range schema.Lags {
			if i-k >= 0 {
				rows[i].Lags[k] = rows[i-k].CaseCount
			} else {
				rows[i].Lags[k] = 0
			}
		}

		rows[i].Rolling = make(map[int]float64, len(schema.Windows))
		for _, w := range schema.Windows {
			lo := i - w + 1
			if lo < 0 {
				lo = 0
			}
			sum := 0
			for j := lo; j <= i; j++ {
				sum += rows[j].CaseCount
			}
			rows[i].Rolling[w] = float64(sum) / float64(i-lo+1)
		}
	}
}
