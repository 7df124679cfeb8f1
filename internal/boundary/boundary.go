// Package boundary loads district boundary geometries from shapefiles and
// serves them to the rest of the pipeline as a name-keyed registry.
package boundary

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sahel-analytics/epicast/internal/crs"
	"github.com/sahel-analytics/epicast/internal/model"
)

// Options controls how a boundary shapefile is read.
type Options struct {
	// NameField and StateField are the attribute columns carrying the
	// district and state names. NameField is required.
	NameField  string
	StateField string

	// SourceEPSG is the CRS of the shapefile coordinates. TargetEPSG is
	// the CRS the registry serves; geometries are reprojected on load.
	SourceEPSG int
	TargetEPSG int
}

// Registry holds the loaded districts, keyed by normalized name.
type Registry struct {
	epsg      int
	districts map[string]*model.District
	order     []string
}

// Load reads a boundary shapefile into a registry. District names are
// normalized before keying, so "Fune " and "fune" resolve to the same
// entry. A record with a duplicate name, a missing name, or a non-polygon
// shape is skipped and counted; a geometry that fails reprojection aborts
// the load, since a registry with silently dropped districts would produce
// a structurally wrong dataset.
func Load(path string, opts Options) (*Registry, error) {
	if opts.NameField == "" {
		return nil, eris.New("boundary: name field not configured")
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	nameIdx, ok := fieldIdx[strings.ToLower(opts.NameField)]
	if !ok {
		return nil, eris.Errorf("boundary: %s: attribute field %q not found", path, opts.NameField)
	}
	stateIdx := -1
	if opts.StateField != "" {
		stateIdx, ok = fieldIdx[strings.ToLower(opts.StateField)]
		if !ok {
			return nil, eris.Errorf("boundary: %s: attribute field %q not found", path, opts.StateField)
		}
	}

	log := zap.L().With(zap.String("component", "boundary"))

	reg := &Registry{
		epsg:      opts.TargetEPSG,
		districts: make(map[string]*model.District),
	}
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		name := model.NormalizeName(attribute(reader, nameIdx))
		if name == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		mp, err = crs.ReprojectMultiPolygon(mp, opts.SourceEPSG, opts.TargetEPSG)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: reproject district %q", name)
		}

		if _, dup := reg.districts[name]; dup {
			log.Warn("duplicate district name, keeping first", zap.String("district", name))
			skipped++
			continue
		}

		state := ""
		if stateIdx >= 0 {
			state = model.NormalizeName(attribute(reader, stateIdx))
		}

		reg.districts[name] = &model.District{
			Name:  name,
			State: state,
			Geom:  mp,
			EPSG:  opts.TargetEPSG,
		}
		reg.order = append(reg.order, name)
	}

	if skipped > 0 {
		log.Debug("skipped boundary records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	if len(reg.districts) == 0 {
		return nil, eris.Errorf("boundary: %s: no usable district records", path)
	}

	sort.Strings(reg.order)
	log.Info("loaded boundaries",
		zap.String("path", path),
		zap.Int("districts", len(reg.districts)),
		zap.Int("epsg", opts.TargetEPSG),
	)
	return reg, nil
}

func attribute(r *shp.Reader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(idx), "\x00"))
}

// NewRegistry builds a registry directly from districts, keyed by their
// normalized names. For callers that assemble districts without a
// shapefile; duplicates keep the first entry.
func NewRegistry(epsg int, districts ...*model.District) *Registry {
	reg := &Registry{
		epsg:      epsg,
		districts: make(map[string]*model.District, len(districts)),
	}
	for _, d := range districts {
		name := model.NormalizeName(d.Name)
		if _, dup := reg.districts[name]; dup {
			continue
		}
		reg.districts[name] = d
		reg.order = append(reg.order, name)
	}
	sort.Strings(reg.order)
	return reg
}

// EPSG returns the CRS the registry geometries are expressed in.
func (r *Registry) EPSG() int { return r.epsg }

// Len returns the number of districts in the registry.
func (r *Registry) Len() int { return len(r.districts) }

// Get returns the district for a (not necessarily normalized) name.
func (r *Registry) Get(name string) (*model.District, bool) {
	d, ok := r.districts[model.NormalizeName(name)]
	return d, ok
}

// Names returns all district names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Districts returns all districts in name order.
func (r *Registry) Districts() []*model.District {
	out := make([]*model.District, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.districts[name])
	}
	return out
}

// Filter returns a sub-registry containing only the named districts.
// Names absent from the registry are logged and returned so the caller
// can decide whether a partial match is acceptable.
func (r *Registry) Filter(names []string) (*Registry, []string) {
	out := &Registry{
		epsg:      r.epsg,
		districts: make(map[string]*model.District, len(names)),
	}
	var missing []string
	for _, raw := range names {
		name := model.NormalizeName(raw)
		d, ok := r.districts[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if _, dup := out.districts[name]; dup {
			continue
		}
		out.districts[name] = d
		out.order = append(out.order, name)
	}
	sort.Strings(out.order)
	sort.Strings(missing)
	if len(missing) > 0 {
		zap.L().With(zap.String("component", "boundary")).Warn("requested districts not in boundary file",
			zap.Strings("missing", missing),
		)
	}
	return out, missing
}

// WriteGeoJSON writes the registry as a GeoJSON FeatureCollection.
func (r *Registry) WriteGeoJSON(w io.Writer) error {
	fc := &geojson.FeatureCollection{}
	for _, d := range r.Districts() {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       d.Name,
			Geometry: d.Geom,
			Properties: map[string]any{
				"lga_name":   d.Name,
				"state_name": d.State,
				"epsg":       d.EPSG,
			},
		})
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(fc); err != nil {
		return eris.Wrap(err, "boundary: encode geojson")
	}
	return nil
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Shapefile parts carry no nesting; winding order is the contract. A
// clockwise ring opens a new shell and a counter-clockwise ring is a hole
// in the shell that precedes it, so an enclave district punches a hole in
// its neighbor instead of claiming the neighbor's pixels.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current != nil && current.NumLinearRings() > 0 {
			_ = mp.Push(current)
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		// A hole with no shell in front of it is treated as a shell.
		if clockwise(flat) || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if err := current.Push(ring); err != nil {
			continue
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// clockwise reports whether the ring has negative signed area, the
// shapefile convention for an exterior ring.
func clockwise(flat []float64) bool {
	var sum float64
	for i := 0; i+3 < len(flat); i += 2 {
		sum += (flat[i+2] - flat[i]) * (flat[i+3] + flat[i+1])
	}
	return sum > 0
}
