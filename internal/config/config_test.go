package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t) // no config.yaml present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "lga_name", cfg.Boundary.NameField)
	assert.Equal(t, 4326, cfg.Boundary.SourceEPSG)
	assert.Equal(t, 4326, cfg.Boundary.TargetEPSG)
	assert.Equal(t, "week", cfg.Extract.Granularity)
	assert.Equal(t, 4, cfg.Extract.Workers)
	assert.Equal(t, []int{1, 2, 4}, cfg.Fusion.Lags)
	assert.Equal(t, []int{4, 8}, cfg.Fusion.Windows)
	assert.True(t, cfg.Fusion.Derived)
	assert.Equal(t, []string{"rwi_mean"}, cfg.Fusion.Imputation.CampaignMean)
	assert.Equal(t, []string{"rwi_std"}, cfg.Fusion.Imputation.Zero)
	assert.InDelta(t, 200000, cfg.Fusion.Imputation.Defaults["population_total"], 0.001)
	assert.True(t, cfg.Output.CSV)
	assert.Equal(t, "epicast_features", cfg.Output.Postgres.Table)
	assert.Equal(t, "epicast.db", cfg.Ledger.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yamlCfg := `
boundary:
  shapefile: data/yobe_lgas.shp
  source_epsg: 32632
epi:
  path: data/linelist.xlsx
  date_column: Date of Onset
  district_column: LGA
extract:
  granularity: week
  start: 2024-06-02
  end: 2024-08-31
  workers: 8
variables:
  - name: precipitation
    column: precipitation_total
    reducer: sum
    source:
      kind: dir
      dir: data/chirps
      epsg: 4326
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlCfg), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/yobe_lgas.shp", cfg.Boundary.Shapefile)
	assert.Equal(t, 32632, cfg.Boundary.SourceEPSG)
	assert.Equal(t, 4326, cfg.Boundary.TargetEPSG) // default kept
	assert.Equal(t, "Date of Onset", cfg.Epi.DateColumn)
	assert.Equal(t, 8, cfg.Extract.Workers)
	// Bare YAML dates arrive as time.Time; they must still land in the
	// string range fields.
	assert.Equal(t, "2024-06-02", cfg.Extract.Start)
	assert.Equal(t, "2024-08-31", cfg.Extract.End)
	require.Len(t, cfg.Vars, 1)
	assert.Equal(t, "precipitation_total", cfg.Vars[0].Column)
	assert.Equal(t, "sum", cfg.Vars[0].Reducer)
	assert.Equal(t, "dir", cfg.Vars[0].Source.Kind)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("EPICAST_LOG_LEVEL", "warn")
	t.Setenv("EPICAST_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLULCClasses_Default(t *testing.T) {
	classes, err := LULCConfig{}.Classes()
	require.NoError(t, err)
	require.Len(t, classes, 10)
	assert.Equal(t, 1, classes[0].Code)
	assert.Equal(t, "lulc_water_prop", classes[0].Name)
	assert.Equal(t, "lulc_clouds_prop", classes[9].Name)
}

func TestLULCClasses_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- code: 1
  name: lulc_water_prop
- code: 7
  name: lulc_built_prop
`), 0o644))

	classes, err := LULCConfig{ClassFile: path}.Classes()
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, 7, classes[1].Code)

	_, err = LULCConfig{ClassFile: filepath.Join(dir, "missing.yaml")}.Classes()
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("[]\n"), 0o644))
	_, err = LULCConfig{ClassFile: empty}.Classes()
	require.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
