package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// MEDIAINGEST_POLICY_MAX_FILE_SIZE_MB=10.
const EnvPrefix = "MEDIAINGEST"

// PolicyOptions is the externally supplied form of SecurityPolicy.  Sizes are
// in MiB and the timeout in seconds; omitted fields take the defaults.
type PolicyOptions struct {
	MaxWidth                 int   `mapstructure:"max_width" default:"8192"`
	MaxHeight                int   `mapstructure:"max_height" default:"8192"`
	MaxFileSizeMB            int   `mapstructure:"max_file_size_mb" default:"50"`
	MaxMemoryMB              int   `mapstructure:"max_memory_mb" default:"256"`
	ProcessingTimeoutSeconds int   `mapstructure:"processing_timeout_seconds" default:"30"`
	AutoOrient               *bool `mapstructure:"auto_orient" default:"true"`
	StripMetadata            *bool `mapstructure:"strip_metadata" default:"true"`
}

// ToPolicy converts the options, applying defaults for anything omitted.
func (o PolicyOptions) ToPolicy() (SecurityPolicy, error) {
	if err := defaults.Set(&o); err != nil {
		return SecurityPolicy{}, fmt.Errorf("config: policy defaults: %w", err)
	}
	return SecurityPolicy{
		MaxWidth:          o.MaxWidth,
		MaxHeight:         o.MaxHeight,
		MaxFileSizeBytes:  int64(o.MaxFileSizeMB) * MiB,
		MaxMemoryBytes:    int64(o.MaxMemoryMB) * MiB,
		ProcessingTimeout: time.Duration(o.ProcessingTimeoutSeconds) * time.Second,
		AutoOrient:        *o.AutoOrient,
		StripMetadata:     *o.StripMetadata,
	}, nil
}

type outputOptions struct {
	Format      string `mapstructure:"format" default:"webp"`
	Quality     int    `mapstructure:"quality" default:"85"`
	JPEGQuality int    `mapstructure:"jpeg_quality" default:"90"`
	MaxWidth    int    `mapstructure:"max_width" default:"2500"`
	MaxHeight   int    `mapstructure:"max_height" default:"2500"`
	DPI         int    `mapstructure:"dpi" default:"96"`
}

type thumbnailOptions struct {
	MaxSize int `mapstructure:"max_size" default:"400"`
	MinSize int `mapstructure:"min_size" default:"200"`
	Quality int `mapstructure:"quality" default:"75"`
}

// FileConfig mirrors the on-disk / environment configuration layout.
type FileConfig struct {
	Policy    PolicyOptions    `mapstructure:"policy"`
	Output    outputOptions    `mapstructure:"output"`
	Thumbnail thumbnailOptions `mapstructure:"thumbnail"`
	TempDir   string           `mapstructure:"temp_dir"`
	LogLevel  string           `mapstructure:"log_level" default:"info"`
	LogFile   string           `mapstructure:"log_file"`
}

var envKeys = []string{
	"policy.max_width", "policy.max_height", "policy.max_file_size_mb",
	"policy.max_memory_mb", "policy.processing_timeout_seconds",
	"policy.auto_orient", "policy.strip_metadata",
	"output.format", "output.quality", "output.jpeg_quality",
	"output.max_width", "output.max_height", "output.dpi",
	"thumbnail.max_size", "thumbnail.min_size", "thumbnail.quality",
	"temp_dir", "log_level", "log_file",
}

// Load reads configuration from path (YAML, JSON or TOML; empty path skips the
// file) with MEDIAINGEST_* environment overrides, fills defaults and
// validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return Config{}, fmt.Errorf("config: bind env %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := defaults.Set(&fc); err != nil {
		return Config{}, fmt.Errorf("config: defaults: %w", err)
	}

	cfg, err := fc.ToConfig()
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ToConfig merges the file configuration over Default().
func (fc FileConfig) ToConfig() (Config, error) {
	policy, err := fc.Policy.ToPolicy()
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	cfg.Policy = policy
	cfg.Output = OutputConfig{
		Format:      strings.ToLower(fc.Output.Format),
		Quality:     fc.Output.Quality,
		JPEGQuality: fc.Output.JPEGQuality,
		MaxWidth:    fc.Output.MaxWidth,
		MaxHeight:   fc.Output.MaxHeight,
		DPI:         fc.Output.DPI,
	}
	cfg.Thumbnail = ThumbnailConfig{
		MaxSize: fc.Thumbnail.MaxSize,
		MinSize: fc.Thumbnail.MinSize,
		Quality: fc.Thumbnail.Quality,
	}
	cfg.TempDir = fc.TempDir
	cfg.LogLevel = strings.ToLower(fc.LogLevel)
	cfg.LogFile = fc.LogFile
	return cfg, nil
}
