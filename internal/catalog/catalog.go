// Package catalog discovers dated raster snapshots for environmental
// variables. Sources hide where the files come from; the extraction layer
// only sees (variable, date, local path) triples.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Snapshot is one dated observation of a variable, backed by a local
// ESRI ASCII grid file.
type Snapshot struct {
	Variable string
	Date     time.Time
	Path     string
	EPSG     int
}

// Source yields the snapshots of a variable inside a date range, sorted
// by date ascending. Both endpoints are inclusive.
type Source interface {
	Query(ctx context.Context, variable string, start, end time.Time) ([]Snapshot, error)
}

// SnapshotFileName returns the canonical file name for a variable
// observation: <variable>_<YYYYMMDD>.asc.
func SnapshotFileName(variable string, date time.Time) string {
	return fmt.Sprintf("%s_%s.asc", variable, date.Format("20060102"))
}

// parseSnapshotName inverts SnapshotFileName. ok is false for files that
// do not follow the convention or belong to another variable.
func parseSnapshotName(name, variable string) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".asc")
	if base == name {
		return time.Time{}, false
	}
	prefix := variable + "_"
	if !strings.HasPrefix(base, prefix) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("20060102", strings.TrimPrefix(base, prefix), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// DirSource serves snapshots from a flat local directory of
// <variable>_<YYYYMMDD>.asc files.
type DirSource struct {
	Dir  string
	EPSG int
}

// NewDirSource creates a directory-backed source. The EPSG code applies
// to every grid in the directory.
func NewDirSource(dir string, epsg int) *DirSource {
	return &DirSource{Dir: dir, EPSG: epsg}
}

// Query lists the variable's snapshots between start and end, inclusive.
func (s *DirSource) Query(_ context.Context, variable string, start, end time.Time) ([]Snapshot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read dir %s", s.Dir)
	}

	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		d, ok := parseSnapshotName(e.Name(), variable)
		if !ok {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, Snapshot{
			Variable: variable,
			Date:     d,
			Path:     filepath.Join(s.Dir, e.Name()),
			EPSG:     s.EPSG,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// StaticSource serves a fixed set of time-invariant grids (elevation,
// land cover, and similar layers) regardless of the queried date range.
// The snapshot date is zero; callers treat the grid as valid for every
// period.
type StaticSource struct {
	paths map[string]string
	epsg  int
}

// NewStaticSource maps variable names to grid file paths.
func NewStaticSource(paths map[string]string, epsg int) *StaticSource {
	return &StaticSource{paths: paths, epsg: epsg}
}

// Query returns the single static snapshot for the variable. The date
// range is ignored. An unknown variable is an error, not an empty result:
// a missing static layer means the configuration is wrong.
func (s *StaticSource) Query(_ context.Context, variable string, _, _ time.Time) ([]Snapshot, error) {
	path, ok := s.paths[variable]
	if !ok {
		return nil, eris.Errorf("catalog: no static layer configured for variable %q", variable)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "catalog: static layer %s", path)
	}
	return []Snapshot{{Variable: variable, Path: path, EPSG: s.epsg}}, nil
}
