package temporal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sahel-analytics/epicast/internal/boundary"
	"github.com/sahel-analytics/epicast/internal/catalog"
	"github.com/sahel-analytics/epicast/internal/model"
	"github.com/sahel-analytics/epicast/internal/raster"
)

// writeConstantGrid writes a 4x4 ESRI ASCII grid over [0,4]x[0,4] with
// every pixel set to v.
func writeConstantGrid(t *testing.T, dir, name string, v float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("ncols 4\nnrows 4\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n")
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if col > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%g", v)
		}
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func district(name, state string, minX, minY, maxX, maxY float64) *model.District {
	mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}})
	return &model.District{Name: name, State: state, Geom: mp, EPSG: 4326}
}

func testRegistry() *boundary.Registry {
	return boundary.NewRegistry(4326,
		district("Gulani", "Yobe", 2, 0, 4, 4),
		district("Fune", "Yobe", 0, 0, 2, 4),
	)
}

func TestExtractor_Run(t *testing.T) {
	dir := t.TempDir()
	// Week 1 (2024-08-04 .. 2024-08-10) has two daily snapshots.
	writeConstantGrid(t, dir, "precipitation_20240805.asc", 2)
	writeConstantGrid(t, dir, "precipitation_20240808.asc", 4)
	// Week 2 (2024-08-11 .. 2024-08-17) has none.

	src := catalog.NewDirSource(dir, 4326)
	specs := []VariableSpec{
		{Variable: "precipitation", Column: "precipitation_total", Reducer: ReduceSum, Source: src},
		{Variable: "precipitation", Column: "precipitation_mean", Reducer: ReduceMean, Source: src},
	}
	ex := NewExtractor(testRegistry(), specs, Options{
		Granularity: model.Weekly,
		Start:       day(2024, time.August, 4),
		End:         day(2024, time.August, 17),
		Workers:     2,
	})

	table, report, err := ex.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"precipitation_total", "precipitation_mean"}, table.Columns)
	require.Len(t, table.Rows, 4) // 2 weeks x 2 districts

	// Period-major, district name ascending within each period.
	assert.Equal(t, "Fune", table.Rows[0].District)
	assert.Equal(t, "Gulani", table.Rows[1].District)
	assert.Equal(t, "Fune", table.Rows[2].District)

	// Week 1: sum composite 2+4=6, mean composite 3; constant grids give
	// the same zonal mean in both districts.
	for _, row := range table.Rows[:2] {
		assert.Equal(t, 2024, row.Year)
		assert.Equal(t, day(2024, time.August, 4), row.Start)
		assert.InDelta(t, 6.0, row.Values["precipitation_total"], 1e-9)
		assert.InDelta(t, 3.0, row.Values["precipitation_mean"], 1e-9)
	}

	// Week 2 degraded to the zero sentinel for both columns.
	for _, row := range table.Rows[2:] {
		assert.Zero(t, row.Values["precipitation_total"])
		assert.Zero(t, row.Values["precipitation_mean"])
	}

	assert.Equal(t, 2, report.Periods)
	assert.Equal(t, 2, report.Districts)
	assert.Equal(t, 2, report.DegradedUnits)
}

func TestExtractor_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeConstantGrid(t, dir, "ndvi_20240806.asc", 0.5)

	src := catalog.NewDirSource(dir, 4326)
	specs := []VariableSpec{
		{Variable: "ndvi", Column: "ndvi_mean", Reducer: ReduceMean, Source: src},
	}
	opts := Options{
		Granularity: model.Weekly,
		Start:       day(2024, time.August, 4),
		End:         day(2024, time.August, 10),
	}

	first, _, err := NewExtractor(testRegistry(), specs, opts).Run(context.Background())
	require.NoError(t, err)
	second, _, err := NewExtractor(testRegistry(), specs, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type failingSource struct{ err error }

func (s failingSource) Query(context.Context, string, time.Time, time.Time) ([]catalog.Snapshot, error) {
	return nil, s.err
}

func TestExtractor_SourceFailureDegrades(t *testing.T) {
	specs := []VariableSpec{{
		Variable: "precipitation",
		Column:   "precipitation_total",
		Reducer:  ReduceSum,
		Source:   failingSource{err: fmt.Errorf("archive timeout")},
	}}
	ex := NewExtractor(testRegistry(), specs, Options{
		Granularity: model.Weekly,
		Start:       day(2024, time.August, 4),
		End:         day(2024, time.August, 17),
	})

	table, report, err := ex.Run(context.Background())
	require.NoError(t, err)

	// Every period row survives with the zero sentinel.
	require.Len(t, table.Rows, 4)
	for _, row := range table.Rows {
		assert.Zero(t, row.Values["precipitation_total"])
	}
	assert.Equal(t, 2, report.DegradedUnits)
}

func TestExtractor_UnreadableSnapshotDegrades(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ndvi_20240806.asc"), []byte("not a grid"), 0o644))

	specs := []VariableSpec{{
		Variable: "ndvi",
		Column:   "ndvi_mean",
		Reducer:  ReduceMean,
		Source:   catalog.NewDirSource(dir, 4326),
	}}
	ex := NewExtractor(testRegistry(), specs, Options{
		Granularity: model.Weekly,
		Start:       day(2024, time.August, 4),
		End:         day(2024, time.August, 10),
	})

	table, report, err := ex.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	for _, row := range table.Rows {
		assert.Zero(t, row.Values["ndvi_mean"])
	}
	assert.Equal(t, 1, report.DegradedUnits)
}

func TestExtractor_NoSpecs(t *testing.T) {
	ex := NewExtractor(testRegistry(), nil, Options{
		Granularity: model.Weekly,
		Start:       day(2024, time.August, 4),
		End:         day(2024, time.August, 10),
	})
	_, _, err := ex.Run(context.Background())
	require.Error(t, err)
}

func TestExtractStatic(t *testing.T) {
	dir := t.TempDir()
	writeConstantGrid(t, dir, "elevation.asc", 350)

	// Land cover: left half water (code 1), right half built (code 7).
	var b strings.Builder
	b.WriteString("ncols 4\nnrows 4\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n")
	for row := 0; row < 4; row++ {
		b.WriteString("1 1 7 7\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lulc.asc"), []byte(b.String()), 0o644))

	static := catalog.NewStaticSource(map[string]string{
		"elevation": filepath.Join(dir, "elevation.asc"),
		"lulc":      filepath.Join(dir, "lulc.asc"),
	}, 4326)

	table, err := ExtractStatic(context.Background(), testRegistry(), StaticOptions{
		Specs: []StaticSpec{{Variable: "elevation", Column: "elevation_mean", Source: static}},
		LULC: &LULCSpec{
			Variable: "lulc",
			Source:   static,
			Classes: []raster.Class{
				{Code: 1, Name: "lulc_water_prop"},
				{Code: 7, Name: "lulc_built_prop"},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"elevation_mean", "lulc_water_prop", "lulc_built_prop"}, table.Columns)

	fune := table.Rows["Fune"] // left half
	require.NotNil(t, fune)
	assert.InDelta(t, 350.0, fune["elevation_mean"], 1e-9)
	assert.InDelta(t, 1.0, fune["lulc_water_prop"], 1e-9)
	assert.InDelta(t, 0.0, fune["lulc_built_prop"], 1e-9)

	gulani := table.Rows["Gulani"] // right half
	require.NotNil(t, gulani)
	assert.InDelta(t, 1.0, gulani["lulc_built_prop"], 1e-9)
}

func TestExtractSocio(t *testing.T) {
	dir := t.TempDir()
	// Wealth raster only covers the western district.
	grid := "ncols 2\nnrows 4\nxllcorner 0\nyllcorner 0\ncellsize 1\nNODATA_value -9999\n" +
		strings.Repeat("0.5 0.5\n", 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rwi.asc"), []byte(grid), 0o644))
	writeConstantGrid(t, dir, "population.asc", 100)

	src := catalog.NewStaticSource(map[string]string{
		"rwi":        filepath.Join(dir, "rwi.asc"),
		"population": filepath.Join(dir, "population.asc"),
	}, 4326)

	table, err := ExtractSocio(context.Background(), testRegistry(), []SocioSpec{
		{Variable: "rwi", Column: "rwi_mean", Stat: raster.StatMean, Source: src},
		{Variable: "population", Column: "population_total", Stat: raster.StatSum, Source: src},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"rwi_mean", "population_total"}, table.Columns)

	fune := table.Rows["Fune"]
	require.NotNil(t, fune)
	assert.InDelta(t, 0.5, fune["rwi_mean"], 1e-9)
	assert.InDelta(t, 800.0, fune["population_total"], 1e-9) // 8 pixels x 100

	// No rwi coverage over Gulani: the cell stays absent for imputation.
	gulani := table.Rows["Gulani"]
	require.NotNil(t, gulani)
	_, covered := gulani["rwi_mean"]
	assert.False(t, covered)
	assert.InDelta(t, 800.0, gulani["population_total"], 1e-9)
}

func TestExtractSocio_NoSpecs(t *testing.T) {
	_, err := ExtractSocio(context.Background(), testRegistry(), nil)
	require.Error(t, err)
}
