// Package raster holds the in-memory single-band raster model, the ESRI
// ASCII grid reader, and the zonal-statistics engine.
package raster

import (
	"bufio"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Grid is a single-band raster. Data is row-major with row 0 at the
// northern edge, matching the ASCII grid file layout.
type Grid struct {
	Name     string
	Data     []float64
	Rows     int
	Cols     int
	XLL      float64 // x of the lower-left corner
	YLL      float64 // y of the lower-left corner
	CellSize float64
	NoData   float64
	EPSG     int
}

// Value returns the pixel value at (row, col).
func (g *Grid) Value(row, col int) float64 {
	return g.Data[row*g.Cols+col]
}

// IsNoData reports whether v is the nodata sentinel (or NaN).
func (g *Grid) IsNoData(v float64) bool {
	return math.IsNaN(v) || v == g.NoData
}

// CellCenter returns the coordinates of the center of pixel (row, col).
func (g *Grid) CellCenter(row, col int) (x, y float64) {
	x = g.XLL + (float64(col)+0.5)*g.CellSize
	y = g.YLL + (float64(g.Rows-1-row)+0.5)*g.CellSize
	return x, y
}

// Bounds returns the grid extent as a go-geom bounding box.
func (g *Grid) Bounds() *geom.Bounds {
	b := geom.NewBounds(geom.XY)
	b.Set(g.XLL, g.YLL, g.XLL+float64(g.Cols)*g.CellSize, g.YLL+float64(g.Rows)*g.CellSize)
	return b
}

// SameShape reports whether o covers the same pixel grid as g.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols &&
		g.XLL == o.XLL && g.YLL == o.YLL && g.CellSize == o.CellSize
}

// ReadASCIIGrid parses an ESRI ASCII grid file. The header accepts
// xllcorner/yllcorner or xllcenter/yllcenter forms; NODATA_value defaults
// to -9999 when absent. The caller supplies the EPSG code, since the
// format itself carries no CRS.
func ReadASCIIGrid(path string, epsg int) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	g := &Grid{NoData: -9999, EPSG: epsg, Name: path}
	var xCenter, yCenter bool

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	// Header lines: "key value" pairs until the first data row.
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])
		isHeader := true
		switch key {
		case "ncols":
			g.Cols, err = strconv.Atoi(fields[1])
		case "nrows":
			g.Rows, err = strconv.Atoi(fields[1])
		case "xllcorner":
			g.XLL, err = strconv.ParseFloat(fields[1], 64)
		case "yllcorner":
			g.YLL, err = strconv.ParseFloat(fields[1], 64)
		case "xllcenter":
			g.XLL, err = strconv.ParseFloat(fields[1], 64)
			xCenter = true
		case "yllcenter":
			g.YLL, err = strconv.ParseFloat(fields[1], 64)
			yCenter = true
		case "cellsize":
			g.CellSize, err = strconv.ParseFloat(fields[1], 64)
		case "nodata_value":
			g.NoData, err = strconv.ParseFloat(fields[1], 64)
		default:
			isHeader = false
		}
		if err != nil {
			return nil, eris.Wrapf(err, "raster: parse header %q in %s", line, path)
		}
		if !isHeader {
			if err := appendValues(g, fields, path); err != nil {
				return nil, err
			}
			break
		}
	}

	if g.Rows <= 0 || g.Cols <= 0 || g.CellSize <= 0 {
		return nil, eris.Errorf("raster: %s: incomplete header (nrows=%d ncols=%d cellsize=%g)", path, g.Rows, g.Cols, g.CellSize)
	}
	if xCenter {
		g.XLL -= g.CellSize / 2
	}
	if yCenter {
		g.YLL -= g.CellSize / 2
	}

	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := appendValues(g, fields, path); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "raster: read %s", path)
	}

	if len(g.Data) != g.Rows*g.Cols {
		return nil, eris.Errorf("raster: %s: expected %d values, got %d", path, g.Rows*g.Cols, len(g.Data))
	}
	return g, nil
}

func appendValues(g *Grid, fields []string, path string) error {
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return eris.Wrapf(err, "raster: parse value %q in %s", f, path)
		}
		g.Data = append(g.Data, v)
	}
	return nil
}
