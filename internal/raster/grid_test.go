package raster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGrid(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.asc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadASCIIGrid(t *testing.T) {
	path := writeGrid(t, `ncols 3
nrows 2
xllcorner 10.0
yllcorner 5.0
cellsize 0.5
NODATA_value -9999
1 2 3
4 -9999 6
`)
	g, err := ReadASCIIGrid(path, 4326)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, 10.0, g.XLL)
	assert.Equal(t, 5.0, g.YLL)
	assert.Equal(t, 0.5, g.CellSize)
	assert.Equal(t, -9999.0, g.NoData)
	assert.Equal(t, 4326, g.EPSG)

	// Row 0 is the northern row.
	assert.Equal(t, 1.0, g.Value(0, 0))
	assert.Equal(t, 6.0, g.Value(1, 2))
	assert.True(t, g.IsNoData(g.Value(1, 1)))

	x, y := g.CellCenter(0, 0)
	assert.InDelta(t, 10.25, x, 1e-9)
	assert.InDelta(t, 5.75, y, 1e-9)
}

func TestReadASCIIGrid_CenterOrigin(t *testing.T) {
	path := writeGrid(t, `ncols 2
nrows 2
xllcenter 0.5
yllcenter 0.5
cellsize 1
1 2
3 4
`)
	g, err := ReadASCIIGrid(path, 4326)
	require.NoError(t, err)

	// Center origin shifts the corner back half a cell.
	assert.Equal(t, 0.0, g.XLL)
	assert.Equal(t, 0.0, g.YLL)
	// Default nodata when the header omits it.
	assert.Equal(t, -9999.0, g.NoData)
}

func TestReadASCIIGrid_ValueCountMismatch(t *testing.T) {
	path := writeGrid(t, `ncols 2
nrows 2
xllcorner 0
yllcorner 0
cellsize 1
1 2 3
`)
	_, err := ReadASCIIGrid(path, 4326)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4 values")
}

func TestReadASCIIGrid_IncompleteHeader(t *testing.T) {
	path := writeGrid(t, `xllcorner 0
yllcorner 0
cellsize 1
`)
	_, err := ReadASCIIGrid(path, 4326)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete header")
}

func TestGrid_SameShape(t *testing.T) {
	a := &Grid{Rows: 2, Cols: 3, XLL: 1, YLL: 2, CellSize: 0.5}
	b := &Grid{Rows: 2, Cols: 3, XLL: 1, YLL: 2, CellSize: 0.5}
	c := &Grid{Rows: 2, Cols: 3, XLL: 1, YLL: 2, CellSize: 0.25}
	assert.True(t, a.SameShape(b))
	assert.False(t, a.SameShape(c))
}
