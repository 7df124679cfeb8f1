// Package model defines the core value types shared across the pipeline:
// districts, period keys, line-list records, and the fused feature rows.
package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Granularity is the temporal bucket size for period-keyed tables.
type Granularity string

const (
	Weekly  Granularity = "week"
	Monthly Granularity = "month"
)

// ParseGranularity validates a granularity name from configuration.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Weekly, Monthly:
		return Granularity(s), nil
	}
	return "", eris.Errorf("model: unknown granularity %q (want week or month)", s)
}

// District is one administrative unit (LGA) with its boundary geometry.
// Districts are loaded once at pipeline start and immutable thereafter.
type District struct {
	Name  string // canonical (normalized) LGA name
	State string // parent state/region name
	Geom  *geom.MultiPolygon
	EPSG  int // CRS of Geom
}

// Bounds returns the bounding box of the district geometry.
func (d *District) Bounds() *geom.Bounds {
	return d.Geom.Bounds()
}

// PeriodKey identifies one (district, period) cell. Period is the
// epidemiological week number for Weekly granularity, or the calendar
// month (1-12) for Monthly.
type PeriodKey struct {
	District string
	Year     int
	Period   int
}

// EpiRecord is one reported case from the line list. Records with an
// unparseable date or missing district never become EpiRecords; they are
// dropped and counted at parse time.
type EpiRecord struct {
	Date     time.Time // onset/report date, UTC midnight
	District string    // normalized to match District.Name
	State    string
	Raw      []string // the source row, untouched
}

// ZonalSummary is the result of intersecting one district with one raster.
// When ValidPixels is zero every statistic is zero, never NaN.
type ZonalSummary struct {
	Mean        float64
	Min         float64
	Max         float64
	Std         float64
	Sum         float64
	Median      float64
	ValidPixels int
}

// EnvRow is one row of the temporal aggregator output: every configured
// environmental variable for one (district, period).
type EnvRow struct {
	District string
	State    string
	Year     int
	Period   int
	Start    time.Time // first day of the period
	End      time.Time // last day of the period
	Values   map[string]float64
}

// Key returns the period key for the row.
func (r EnvRow) Key() PeriodKey {
	return PeriodKey{District: r.District, Year: r.Year, Period: r.Period}
}

// EnvTable is the full temporal aggregator output. Columns fixes the
// variable ordering for serialization.
type EnvTable struct {
	Granularity Granularity
	Columns     []string
	Rows        []EnvRow
}

// DistrictTable holds time-invariant per-district features
// (socio-economic statistics, static terrain, land-cover proportions).
type DistrictTable struct {
	Columns []string
	Rows    map[string]map[string]float64 // district -> column -> value
}

// CaseTable maps period keys to case counts. Periods with zero reported
// cases are absent; zero-fill happens at fusion time against the
// temporal period grid.
type CaseTable struct {
	Granularity Granularity
	Counts      map[PeriodKey]int
}

// FeatureRow is a fully joined record: identity, environmental and
// district-level features, case count, and the derived lag/rolling
// case features.
type FeatureRow struct {
	District  string
	State     string
	Year      int
	Period    int
	Start     time.Time
	End       time.Time
	Env       map[string]float64
	Extra     map[string]float64 // district-level + derived features
	CaseCount int
	Lags      map[int]int     // lag k -> case count k periods back
	Rolling   map[int]float64 // window w -> trailing mean
}

// FeatureTable is the fused dataset plus its column contract.
type FeatureTable struct {
	Schema Schema
	Rows   []FeatureRow
}
