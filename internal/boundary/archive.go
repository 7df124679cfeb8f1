package boundary

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sahel-analytics/epicast/internal/fetcher"
)

// LoadArchive loads a registry from a zipped shapefile, the form boundary
// portals usually distribute. The archive is extracted into destDir and
// must contain exactly one .shp (its sidecar .shx and .dbf come along).
func LoadArchive(zipPath, destDir string, opts Options) (*Registry, error) {
	files, err := fetcher.ExtractZIP(zipPath, destDir)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: extract %s", zipPath)
	}

	var shpPath string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".shp") {
			if shpPath != "" {
				return nil, eris.Errorf("boundary: %s contains multiple shapefiles", zipPath)
			}
			shpPath = f
		}
	}
	if shpPath == "" {
		return nil, eris.Errorf("boundary: %s contains no shapefile", zipPath)
	}

	return Load(shpPath, opts)
}
