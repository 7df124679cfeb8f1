// Package config loads the pipeline configuration from config.yaml and
// EPICAST_-prefixed environment variables, and initializes the global
// logger.
package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sahel-analytics/epicast/internal/raster"
)

// Config holds the full application configuration.
type Config struct {
	Boundary BoundaryConfig   `yaml:"boundary" mapstructure:"boundary"`
	Epi      EpiConfig        `yaml:"epi" mapstructure:"epi"`
	Extract  ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Vars     []VariableConfig `yaml:"variables" mapstructure:"variables"`
	Statics  StaticsConfig    `yaml:"statics" mapstructure:"statics"`
	Socio    SocioConfig      `yaml:"socio" mapstructure:"socio"`
	Fusion   FusionConfig     `yaml:"fusion" mapstructure:"fusion"`
	Output   OutputConfig     `yaml:"output" mapstructure:"output"`
	Ledger   LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Server   ServerConfig     `yaml:"server" mapstructure:"server"`
	Log      LogConfig        `yaml:"log" mapstructure:"log"`
}

// BoundaryConfig locates the district boundary shapefile and names its
// attribute columns.
type BoundaryConfig struct {
	Shapefile  string `yaml:"shapefile" mapstructure:"shapefile"`
	NameField  string `yaml:"name_field" mapstructure:"name_field"`
	StateField string `yaml:"state_field" mapstructure:"state_field"`
	SourceEPSG int    `yaml:"source_epsg" mapstructure:"source_epsg"`
	TargetEPSG int    `yaml:"target_epsg" mapstructure:"target_epsg"`
}

// EpiConfig configures line-list parsing. The column roles are explicit;
// empty values fall back to header detection.
type EpiConfig struct {
	Path           string   `yaml:"path" mapstructure:"path"`
	DateColumn     string   `yaml:"date_column" mapstructure:"date_column"`
	DistrictColumn string   `yaml:"district_column" mapstructure:"district_column"`
	StateColumn    string   `yaml:"state_column" mapstructure:"state_column"`
	DateFormats    []string `yaml:"date_formats" mapstructure:"date_formats"`
	Sheet          string   `yaml:"sheet" mapstructure:"sheet"`
}

// ExtractConfig controls the temporal extraction stage.
type ExtractConfig struct {
	Granularity   string `yaml:"granularity" mapstructure:"granularity"` // week or month
	Start         string `yaml:"start" mapstructure:"start"`             // YYYY-MM-DD; empty = from line list
	End           string `yaml:"end" mapstructure:"end"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
	CheckpointDir string `yaml:"checkpoint_dir" mapstructure:"checkpoint_dir"`
}

// SourceConfig describes where a variable's snapshots come from.
type SourceConfig struct {
	Kind string `yaml:"kind" mapstructure:"kind"` // dir or remote
	EPSG int    `yaml:"epsg" mapstructure:"epsg"`

	// dir
	Dir string `yaml:"dir" mapstructure:"dir"`

	// remote: ftp://, http://, or https:// archive directory
	URL               string  `yaml:"url" mapstructure:"url"`
	CacheDir          string  `yaml:"cache_dir" mapstructure:"cache_dir"`
	CadenceDays       int     `yaml:"cadence_days" mapstructure:"cadence_days"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// VariableConfig binds one environmental output column to its source
// variable and temporal reducer.
type VariableConfig struct {
	Name    string       `yaml:"name" mapstructure:"name"`
	Column  string       `yaml:"column" mapstructure:"column"`
	Reducer string       `yaml:"reducer" mapstructure:"reducer"` // sum or mean
	Source  SourceConfig `yaml:"source" mapstructure:"source"`
}

// StaticLayerConfig is one time-invariant continuous layer.
type StaticLayerConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Column string `yaml:"column" mapstructure:"column"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// LULCConfig is the categorical land-cover layer. ClassFile optionally
// overrides the built-in class table.
type LULCConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	ClassFile string `yaml:"class_file" mapstructure:"class_file"`
}

// StaticsConfig configures the static feature extraction.
type StaticsConfig struct {
	EPSG   int                 `yaml:"epsg" mapstructure:"epsg"`
	Layers []StaticLayerConfig `yaml:"layers" mapstructure:"layers"`
	LULC   LULCConfig          `yaml:"lulc" mapstructure:"lulc"`
}

// SocioLayerConfig is one socio-economic layer and the zonal statistic
// that summarizes it.
type SocioLayerConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	Column string `yaml:"column" mapstructure:"column"`
	Stat   string `yaml:"stat" mapstructure:"stat"` // mean, std, sum
	Path   string `yaml:"path" mapstructure:"path"`
}

// SocioConfig configures the socio-economic extraction.
type SocioConfig struct {
	EPSG   int                `yaml:"epsg" mapstructure:"epsg"`
	Layers []SocioLayerConfig `yaml:"layers" mapstructure:"layers"`
}

// ImputationConfig maps socio columns to fill strategies.
type ImputationConfig struct {
	CampaignMean []string           `yaml:"campaign_mean" mapstructure:"campaign_mean"`
	Zero         []string           `yaml:"zero" mapstructure:"zero"`
	Defaults     map[string]float64 `yaml:"defaults" mapstructure:"defaults"`
}

// FusionConfig controls the fusion stage.
type FusionConfig struct {
	Lags       []int            `yaml:"lags" mapstructure:"lags"`
	Windows    []int            `yaml:"windows" mapstructure:"windows"`
	Derived    bool             `yaml:"derived" mapstructure:"derived"`
	Imputation ImputationConfig `yaml:"imputation" mapstructure:"imputation"`
}

// PostgresConfig is the optional database materialization target.
type PostgresConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Table string `yaml:"table" mapstructure:"table"`
}

// OutputConfig names the export artifacts.
type OutputConfig struct {
	Dir      string         `yaml:"dir" mapstructure:"dir"`
	CSV      bool           `yaml:"csv" mapstructure:"csv"`
	XLSX     bool           `yaml:"xlsx" mapstructure:"xlsx"`
	GeoJSON  bool           `yaml:"geojson" mapstructure:"geojson"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// LedgerConfig locates the work-unit ledger database.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EPICAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("boundary.name_field", "lga_name")
	v.SetDefault("boundary.state_field", "state_name")
	v.SetDefault("boundary.source_epsg", 4326)
	v.SetDefault("boundary.target_epsg", 4326)
	v.SetDefault("extract.granularity", "week")
	v.SetDefault("extract.workers", 4)
	v.SetDefault("extract.checkpoint_dir", "checkpoints")
	v.SetDefault("statics.epsg", 4326)
	v.SetDefault("socio.epsg", 4326)
	v.SetDefault("fusion.lags", []int{1, 2, 4})
	v.SetDefault("fusion.windows", []int{4, 8})
	v.SetDefault("fusion.derived", true)
	v.SetDefault("fusion.imputation.campaign_mean", []string{"rwi_mean"})
	v.SetDefault("fusion.imputation.zero", []string{"rwi_std"})
	v.SetDefault("fusion.imputation.defaults", map[string]float64{"population_total": 200000})
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.csv", true)
	v.SetDefault("output.xlsx", true)
	v.SetDefault("output.geojson", false)
	v.SetDefault("output.postgres.table", "epicast_features")
	v.SetDefault("ledger.path", "epicast.db")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		dateToStringHook(),
	))); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// dateToStringHook lets bare YAML dates (start: 2024-06-02) land in
// string fields: the yaml parser hands viper a time.Time for them.
func dateToStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from == reflect.TypeOf(time.Time{}) && to.Kind() == reflect.String {
			return data.(time.Time).Format("2006-01-02"), nil
		}
		return data, nil
	}
}

// defaultClasses is the 10-class ESRI Sentinel-2 land-cover table.
var defaultClasses = []raster.Class{
	{Code: 1, Name: "lulc_water_prop"},
	{Code: 2, Name: "lulc_trees_prop"},
	{Code: 3, Name: "lulc_grass_prop"},
	{Code: 4, Name: "lulc_flooded_veg_prop"},
	{Code: 5, Name: "lulc_crops_prop"},
	{Code: 6, Name: "lulc_shrub_prop"},
	{Code: 7, Name: "lulc_built_prop"},
	{Code: 8, Name: "lulc_bare_prop"},
	{Code: 9, Name: "lulc_snow_ice_prop"},
	{Code: 10, Name: "lulc_clouds_prop"},
}

// Classes returns the land-cover class table: the built-in ESRI table,
// or the contents of lulc.class_file when configured.
func (c LULCConfig) Classes() ([]raster.Class, error) {
	if c.ClassFile == "" {
		return defaultClasses, nil
	}
	data, err := os.ReadFile(c.ClassFile)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read class file %s", c.ClassFile)
	}
	var classes []raster.Class
	if err := yaml.Unmarshal(data, &classes); err != nil {
		return nil, eris.Wrapf(err, "config: parse class file %s", c.ClassFile)
	}
	if len(classes) == 0 {
		return nil, eris.Errorf("config: class file %s defines no classes", c.ClassFile)
	}
	return classes, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
