package boundary

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestShapefile(t *testing.T, records []struct {
	name, state string
	ring        [][]float64
}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "districts.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("lga_name", 40),
		shp.StringField("state_name", 40),
	}))

	for i, rec := range records {
		points := make([]shp.Point, 0, len(rec.ring))
		for _, c := range rec.ring {
			points = append(points, shp.Point{X: c[0], Y: c[1]})
		}
		poly := (*shp.Polygon)(shp.NewPolyLine([][]shp.Point{points}))
		w.Write(poly)
		require.NoError(t, w.WriteAttribute(i, 0, rec.name))
		require.NoError(t, w.WriteAttribute(i, 1, rec.state))
	}
	w.Close()

	// The go-shp writer drops the attribute table at <base>dbf, which the
	// reader never finds. Move it to the standard sidecar name.
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	return path
}

func unitSquare(x, y float64) [][]float64 {
	return [][]float64{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}
}

func testOptions() Options {
	return Options{
		NameField:  "lga_name",
		StateField: "state_name",
		SourceEPSG: 4326,
		TargetEPSG: 4326,
	}
}

func TestLoad_NormalizesNames(t *testing.T) {
	path := writeTestShapefile(t, []struct {
		name, state string
		ring        [][]float64
	}{
		{"Fune ", "yobe", unitSquare(0, 0)},
		{"GULANI", "Yobe", unitSquare(2, 0)},
	})

	reg, err := Load(path, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"Fune", "Gulani"}, reg.Names())

	// Trailing whitespace and case differences resolve to the same entry.
	for _, lookup := range []string{"Fune", "fune", "FUNE ", " fune"} {
		d, ok := reg.Get(lookup)
		require.True(t, ok, "lookup %q", lookup)
		assert.Equal(t, "Fune", d.Name)
		assert.Equal(t, "Yobe", d.State)
	}
}

func TestLoad_GeometryAndCRS(t *testing.T) {
	path := writeTestShapefile(t, []struct {
		name, state string
		ring        [][]float64
	}{
		{"Damaturu", "Yobe", unitSquare(11, 11)},
	})

	reg, err := Load(path, testOptions())
	require.NoError(t, err)

	d, ok := reg.Get("Damaturu")
	require.True(t, ok)
	assert.Equal(t, 4326, d.EPSG)
	require.Equal(t, 1, d.Geom.NumPolygons())
	b := d.Geom.Bounds()
	assert.InDelta(t, 11.0, b.Min(0), 1e-9)
	assert.InDelta(t, 12.0, b.Max(0), 1e-9)
}

func TestLoad_Reprojects(t *testing.T) {
	path := writeTestShapefile(t, []struct {
		name, state string
		ring        [][]float64
	}{
		{"Damaturu", "Yobe", unitSquare(11, 11)},
	})

	opts := testOptions()
	opts.TargetEPSG = 3857
	reg, err := Load(path, opts)
	require.NoError(t, err)

	d, _ := reg.Get("Damaturu")
	assert.Equal(t, 3857, d.EPSG)
	// Web mercator coordinates are in meters, far outside degree range.
	assert.Greater(t, d.Geom.Bounds().Min(0), 1e6)
}

func TestLoad_HoleRings(t *testing.T) {
	// An enclave district leaves a counter-clockwise ring inside its
	// neighbor's clockwise shell. The hole must stay a hole, not become
	// a second shell claiming the enclave's pixels.
	path := filepath.Join(t.TempDir(), "districts.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("lga_name", 40),
		shp.StringField("state_name", 40),
	}))

	shell := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}, {X: 1, Y: 1}}
	w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{shell, hole})))
	require.NoError(t, w.WriteAttribute(0, 0, "Fika"))
	require.NoError(t, w.WriteAttribute(0, 1, "Yobe"))
	w.Close()
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))

	reg, err := Load(path, testOptions())
	require.NoError(t, err)

	d, ok := reg.Get("Fika")
	require.True(t, ok)
	require.Equal(t, 1, d.Geom.NumPolygons())
	assert.Equal(t, 2, d.Geom.Polygon(0).NumLinearRings())
}

func TestLoad_MultipleShells(t *testing.T) {
	// Two clockwise parts are two disjoint shells of one district.
	path := filepath.Join(t.TempDir(), "districts.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("lga_name", 40),
		shp.StringField("state_name", 40),
	}))

	west := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	east := []shp.Point{{X: 2, Y: 0}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 0}, {X: 2, Y: 0}}
	w.Write((*shp.Polygon)(shp.NewPolyLine([][]shp.Point{west, east})))
	require.NoError(t, w.WriteAttribute(0, 0, "Geidam"))
	require.NoError(t, w.WriteAttribute(0, 1, "Yobe"))
	w.Close()
	base := strings.TrimSuffix(path, ".shp")
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))

	reg, err := Load(path, testOptions())
	require.NoError(t, err)

	d, ok := reg.Get("Geidam")
	require.True(t, ok)
	require.Equal(t, 2, d.Geom.NumPolygons())
	assert.Equal(t, 1, d.Geom.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, d.Geom.Polygon(1).NumLinearRings())
}

func TestLoad_MissingNameField(t *testing.T) {
	path := writeTestShapefile(t, []struct {
		name, state string
		ring        [][]float64
	}{
		{"Fune", "Yobe", unitSquare(0, 0)},
	})

	opts := testOptions()
	opts.NameField = "district"
	_, err := Load(path, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"district" not found`)
}

func TestFilter(t *testing.T) {
	path := writeTestShapefile(t, []struct {
		name, state string
		ring        [][]float64
	}{
		{"Fune", "Yobe", unitSquare(0, 0)},
		{"Gulani", "Yobe", unitSquare(2, 0)},
		{"Damaturu", "Yobe", unitSquare(4, 0)},
	})

	reg, err := Load(path, testOptions())
	require.NoError(t, err)

	sub, missing := reg.Filter([]string{"fune", "DAMATURU", "Nowhere"})
	assert.Equal(t, []string{"Damaturu", "Fune"}, sub.Names())
	assert.Equal(t, []string{"Nowhere"}, missing)
	assert.Equal(t, reg.EPSG(), sub.EPSG())
}

func TestWriteGeoJSON(t *testing.T) {
	path := writeTestShapefile(t, []struct {
		name, state string
		ring        [][]float64
	}{
		{"Fune", "Yobe", unitSquare(0, 0)},
	})

	reg, err := Load(path, testOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, reg.WriteGeoJSON(&buf))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
			Geometry   struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Fune", fc.Features[0].Properties["lga_name"])
	assert.Equal(t, "MultiPolygon", fc.Features[0].Geometry.Type)
}
