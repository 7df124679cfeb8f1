// Package crs converts coordinates between the EPSG systems the pipeline
// encounters: geographic WGS84 (4326), web mercator (3857), and WGS84/UTM
// zones (326xx north, 327xx south). Anything else is a hard error; the
// registry refuses to silently pass mismatched coordinates downstream.
package crs

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/wroge/wgs84"
)

// Func transforms a single coordinate pair.
type Func func(x, y float64) (float64, float64)

func system(epsg int) (wgs84.CoordinateReferenceSystem, error) {
	switch {
	case epsg == 4326:
		return wgs84.LonLat(), nil
	case epsg == 3857:
		return wgs84.WebMercator(), nil
	case epsg >= 32601 && epsg <= 32660:
		return wgs84.UTM(float64(epsg-32600), true), nil
	case epsg >= 32701 && epsg <= 32760:
		return wgs84.UTM(float64(epsg-32700), false), nil
	}
	return nil, eris.Errorf("crs: unsupported EPSG code %d", epsg)
}

// Transformer returns a coordinate transform from one EPSG system to
// another. The identity transform is returned when the codes match.
func Transformer(fromEPSG, toEPSG int) (Func, error) {
	if fromEPSG == toEPSG {
		return func(x, y float64) (float64, float64) { return x, y }, nil
	}
	from, err := system(fromEPSG)
	if err != nil {
		return nil, err
	}
	to, err := system(toEPSG)
	if err != nil {
		return nil, err
	}
	t := wgs84.Transform(from, to)
	return func(x, y float64) (float64, float64) {
		a, b, _ := t(x, y, 0)
		return a, b
	}, nil
}

// ReprojectMultiPolygon returns a copy of mp with every vertex transformed
// from fromEPSG to toEPSG. A non-finite result coordinate is an error, not
// a skipped vertex: a half-reprojected boundary would corrupt every zonal
// statistic computed against it.
func ReprojectMultiPolygon(mp *geom.MultiPolygon, fromEPSG, toEPSG int) (*geom.MultiPolygon, error) {
	if fromEPSG == toEPSG {
		return mp, nil
	}
	t, err := Transformer(fromEPSG, toEPSG)
	if err != nil {
		return nil, err
	}

	out := mp.Clone()
	coords := out.FlatCoords()
	stride := out.Stride()
	for i := 0; i+1 < len(coords); i += stride {
		x, y := t(coords[i], coords[i+1])
		if !finite(x) || !finite(y) {
			return nil, eris.Errorf("crs: reprojection %d -> %d produced non-finite coordinate", fromEPSG, toEPSG)
		}
		coords[i], coords[i+1] = x, y
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
