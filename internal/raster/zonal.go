package raster

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sahel-analytics/epicast/internal/crs"
	"github.com/sahel-analytics/epicast/internal/model"
)

// Stat names a zonal statistic.
type Stat string

const (
	StatMean   Stat = "mean"
	StatMin    Stat = "min"
	StatMax    Stat = "max"
	StatStd    Stat = "std"
	StatSum    Stat = "sum"
	StatMedian Stat = "median"
)

// ParseStat validates a statistic name from configuration.
func ParseStat(s string) (Stat, error) {
	switch Stat(s) {
	case StatMean, StatMin, StatMax, StatStd, StatSum, StatMedian:
		return Stat(s), nil
	}
	return "", eris.Errorf("raster: unknown statistic %q", s)
}

// Class maps a categorical raster pixel code to a feature-column name.
type Class struct {
	Code int    `yaml:"code" mapstructure:"code"`
	Name string `yaml:"name" mapstructure:"name"`
}

// ZonalStats computes the requested statistics over the pixels of g whose
// centers fall inside geometry. The geometry is reprojected into the grid
// CRS when the systems differ (the raster is never resampled). Nodata
// pixels are excluded; when no valid pixel remains the zero-sentinel
// summary is returned rather than NaN, so downstream joins never see
// missing values.
func ZonalStats(g *Grid, geometry *geom.MultiPolygon, geomEPSG int, stats []Stat) (model.ZonalSummary, error) {
	values, err := collectPixels(g, geometry, geomEPSG)
	if err != nil {
		return model.ZonalSummary{}, err
	}
	if len(values) == 0 {
		return model.ZonalSummary{}, nil
	}

	want := make(map[Stat]bool, len(stats))
	for _, s := range stats {
		want[s] = true
	}

	sum := 0.0
	minV, maxV := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	mean := sum / float64(len(values))

	out := model.ZonalSummary{ValidPixels: len(values)}
	if want[StatMean] {
		out.Mean = mean
	}
	if want[StatMin] {
		out.Min = minV
	}
	if want[StatMax] {
		out.Max = maxV
	}
	if want[StatSum] {
		out.Sum = sum
	}
	if want[StatStd] {
		var ss float64
		for _, v := range values {
			d := v - mean
			ss += d * d
		}
		out.Std = math.Sqrt(ss / float64(len(values)))
	}
	if want[StatMedian] {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			out.Median = sorted[n/2]
		} else {
			out.Median = (sorted[n/2-1] + sorted[n/2]) / 2
		}
	}
	return out, nil
}

// ClassProportions computes, for a categorical raster, the fraction of
// valid pixels equal to each configured class code. Every configured class
// is always present in the result: zero-pixel classes report 0.0, and when
// the geometry contains no valid pixels at all, every class reports 0.0.
func ClassProportions(g *Grid, geometry *geom.MultiPolygon, geomEPSG int, classes []Class) (map[string]float64, int, error) {
	values, err := collectPixels(g, geometry, geomEPSG)
	if err != nil {
		return nil, 0, err
	}

	props := make(map[string]float64, len(classes))
	for _, c := range classes {
		props[c.Name] = 0.0
	}
	if len(values) == 0 {
		return props, 0, nil
	}

	counts := make(map[int]int)
	for _, v := range values {
		counts[int(math.Round(v))]++
	}
	total := float64(len(values))
	for _, c := range classes {
		props[c.Name] = float64(counts[c.Code]) / total
	}
	return props, len(values), nil
}

// collectPixels returns the valid (non-nodata) pixel values of g whose
// centers fall inside the geometry, after cropping to the geometry's
// bounding extent.
func collectPixels(g *Grid, geometry *geom.MultiPolygon, geomEPSG int) ([]float64, error) {
	projected := geometry
	if geomEPSG != g.EPSG {
		var err error
		projected, err = crs.ReprojectMultiPolygon(geometry, geomEPSG, g.EPSG)
		if err != nil {
			return nil, eris.Wrap(err, "raster: reproject geometry to raster CRS")
		}
	}

	b := projected.Bounds()
	minRow, maxRow, minCol, maxCol, ok := g.cropWindow(b)
	if !ok {
		return nil, nil
	}

	var values []float64
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			v := g.Value(row, col)
			if g.IsNoData(v) {
				continue
			}
			x, y := g.CellCenter(row, col)
			if pointInMultiPolygon(projected, x, y) {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

// cropWindow clips a bounding box to the grid and returns the inclusive
// pixel index window it covers. ok is false when the box misses the grid.
func (g *Grid) cropWindow(b *geom.Bounds) (minRow, maxRow, minCol, maxCol int, ok bool) {
	gb := g.Bounds()
	minX := math.Max(b.Min(0), gb.Min(0))
	maxX := math.Min(b.Max(0), gb.Max(0))
	minY := math.Max(b.Min(1), gb.Min(1))
	maxY := math.Min(b.Max(1), gb.Max(1))
	if minX > maxX || minY > maxY {
		return 0, 0, 0, 0, false
	}

	minCol = clamp(int(math.Floor((minX-g.XLL)/g.CellSize)), 0, g.Cols-1)
	maxCol = clamp(int(math.Floor((maxX-g.XLL)/g.CellSize)), 0, g.Cols-1)
	top := g.YLL + float64(g.Rows)*g.CellSize
	minRow = clamp(int(math.Floor((top-maxY)/g.CellSize)), 0, g.Rows-1)
	maxRow = clamp(int(math.Floor((top-minY)/g.CellSize)), 0, g.Rows-1)
	return minRow, maxRow, minCol, maxCol, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pointInMultiPolygon tests pixel-center containment, honoring holes.
func pointInMultiPolygon(mp *geom.MultiPolygon, x, y float64) bool {
	c := geom.Coord{x, y}
	for i := 0; i < mp.NumPolygons(); i++ {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(p.Layout(), c, p.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < p.NumLinearRings(); r++ {
			if xy.IsPointInRing(p.Layout(), c, p.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
