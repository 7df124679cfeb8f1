package model

import (
	"fmt"
	"strconv"
)

// Schema fixes the column set and ordering of the fused feature table.
// Ordering is deterministic: identity columns, environmental columns,
// district-level/derived columns, case_count, lag columns, rolling columns.
type Schema struct {
	Granularity  Granularity
	EnvColumns   []string
	ExtraColumns []string
	Lags         []int
	Windows      []int
}

// suffix returns the unit suffix used in lag/rolling column names.
func (s Schema) suffix() string {
	if s.Granularity == Monthly {
		return "m"
	}
	return "w"
}

func (s Schema) identityColumns() []string {
	if s.Granularity == Monthly {
		return []string{"lga_name", "state_name", "month_start", "month_end", "year", "month"}
	}
	return []string{"lga_name", "state_name", "week_start", "week_end", "year", "epi_week"}
}

// LagColumn returns the column name for lag k.
func (s Schema) LagColumn(k int) string {
	return fmt.Sprintf("cases_lag_%d%s", k, s.suffix())
}

// RollingColumn returns the column name for window w.
func (s Schema) RollingColumn(w int) string {
	return fmt.Sprintf("cases_rolling_%d%s", w, s.suffix())
}

// Columns returns the full ordered column list.
func (s Schema) Columns() []string {
	cols := append([]string{}, s.identityColumns()...)
	cols = append(cols, s.EnvColumns...)
	cols = append(cols, s.ExtraColumns...)
	cols = append(cols, "case_count")
	for _, k := range s.Lags {
		cols = append(cols, s.LagColumn(k))
	}
	for _, w := range s.Windows {
		cols = append(cols, s.RollingColumn(w))
	}
	return cols
}

// Record formats a feature row as strings in schema column order.
func (s Schema) Record(r FeatureRow) []string {
	rec := []string{
		r.District,
		r.State,
		r.Start.Format("2006-01-02"),
		r.End.Format("2006-01-02"),
		strconv.Itoa(r.Year),
		strconv.Itoa(r.Period),
	}
	for _, c := range s.EnvColumns {
		rec = append(rec, formatFloat(r.Env[c]))
	}
	for _, c := range s.ExtraColumns {
		rec = append(rec, formatFloat(r.Extra[c]))
	}
	rec = append(rec, strconv.Itoa(r.CaseCount))
	for _, k := range s.Lags {
		rec = append(rec, strconv.Itoa(r.Lags[k]))
	}
	for _, w := range s.Windows {
		rec = append(rec, formatFloat(r.Rolling[w]))
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
