package boundary

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipShapefile(t *testing.T, shpPath string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "districts.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	defer out.Close()

	w := zip.NewWriter(out)
	base := shpPath[:len(shpPath)-len(".shp")]
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src, err := os.Open(base + ext)
		require.NoError(t, err)
		fw, err := w.Create(filepath.Base(base) + ext)
		require.NoError(t, err)
		_, err = io.Copy(fw, src)
		require.NoError(t, err)
		src.Close()
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestLoadArchive(t *testing.T) {
	shpPath := writeTestShapefile(t, []struct {
		name, state string
		ring        [][]float64
	}{
		{"Fune", "Yobe", unitSquare(0, 0)},
		{"Gulani", "Yobe", unitSquare(2, 0)},
	})
	zipPath := zipShapefile(t, shpPath)

	reg, err := LoadArchive(zipPath, t.TempDir(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fune", "Gulani"}, reg.Names())
}

func TestLoadArchive_NoShapefile(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	fw, err := w.Create("readme.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("nothing here"))
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	_, err = LoadArchive(zipPath, t.TempDir(), testOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no shapefile")
}
