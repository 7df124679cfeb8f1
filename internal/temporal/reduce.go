package temporal

import (
	"github.com/rotisserie/eris"

	"github.com/sahel-analytics/epicast/internal/raster"
)

// Reducer collapses a stack of dated grids into one grid, pixel by pixel.
type Reducer string

const (
	ReduceSum  Reducer = "sum"
	ReduceMean Reducer = "mean"
)

// ParseReducer validates a reducer name from configuration.
func ParseReducer(s string) (Reducer, error) {
	switch Reducer(s) {
	case ReduceSum, ReduceMean:
		return Reducer(s), nil
	}
	return "", eris.Errorf("temporal: unknown reducer %q (want sum or mean)", s)
}

// Composite reduces grids into a single grid at the same shape. A pixel
// with no valid observation in any input stays nodata; nodata pixels in
// individual inputs are excluded from the reduction rather than poisoning
// it. All inputs must share one pixel grid, since the pipeline never
// resamples rasters.
func Composite(grids []*raster.Grid, r Reducer) (*raster.Grid, error) {
	if len(grids) == 0 {
		return nil, eris.New("temporal: composite of zero grids")
	}
	first := grids[0]
	for _, g := range grids[1:] {
		if !first.SameShape(g) {
			return nil, eris.Errorf("temporal: grid %s does not match shape of %s", g.Name, first.Name)
		}
	}

	n := first.Rows * first.Cols
	sums := make([]float64, n)
	counts := make([]int, n)
	for _, g := range grids {
		for i, v := range g.Data {
			if g.IsNoData(v) {
				continue
			}
			sums[i] += v
			counts[i]++
		}
	}

	out := &raster.Grid{
		Name:     first.Name,
		Data:     make([]float64, n),
		Rows:     first.Rows,
		Cols:     first.Cols,
		XLL:      first.XLL,
		YLL:      first.YLL,
		CellSize: first.CellSize,
		NoData:   first.NoData,
		EPSG:     first.EPSG,
	}
	for i := range out.Data {
		if counts[i] == 0 {
			out.Data[i] = first.NoData
			continue
		}
		switch r {
		case ReduceMean:
			out.Data[i] = sums[i] / float64(counts[i])
		default:
			out.Data[i] = sums[i]
		}
	}
	return out, nil
}
