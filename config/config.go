package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	MiB = 1 << 20

	DefaultMaxDimension      = 8192
	DefaultMaxFileSizeBytes  = 50 * MiB
	DefaultMaxMemoryBytes    = 256 * MiB
	DefaultProcessingTimeout = 30 * time.Second
)

// SecurityPolicy bounds the work a single request may cause.  It is a plain
// value: build it once and share it read-only across goroutines.
type SecurityPolicy struct {
	MaxWidth         int   `validate:"gte=1"`
	MaxHeight        int   `validate:"gte=1"`
	MaxFileSizeBytes int64 `validate:"gte=1"`
	// MaxMemoryBytes is advisory; it sizes the pixel cap of the bounded
	// decoder (four bytes per pixel).
	MaxMemoryBytes    int64         `validate:"gte=0"`
	ProcessingTimeout time.Duration `validate:"gt=0"`
	AutoOrient        bool
	StripMetadata     bool
}

// MaxPixels returns the pixel budget implied by MaxMemoryBytes, or 0 when no
// budget is configured.
func (p SecurityPolicy) MaxPixels() int64 {
	if p.MaxMemoryBytes <= 0 {
		return 0
	}
	return p.MaxMemoryBytes / 4
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() SecurityPolicy {
	return SecurityPolicy{
		MaxWidth:          DefaultMaxDimension,
		MaxHeight:         DefaultMaxDimension,
		MaxFileSizeBytes:  DefaultMaxFileSizeBytes,
		MaxMemoryBytes:    DefaultMaxMemoryBytes,
		ProcessingTimeout: DefaultProcessingTimeout,
		AutoOrient:        true,
		StripMetadata:     true,
	}
}

// Box is a width x height pair.
type Box struct {
	Width  int `validate:"gte=1"`
	Height int `validate:"gte=1"`
}

// OutputConfig controls the main converted artifact.
type OutputConfig struct {
	Format      string `validate:"oneof=webp jpeg"`
	Quality     int    `validate:"gte=1,lte=100"` // WebP
	JPEGQuality int    `validate:"gte=1,lte=100"`
	// MaxWidth / MaxHeight form the delivery ceiling; the effective ceiling
	// is the smaller of this and the security policy.
	MaxWidth  int `validate:"gte=1"`
	MaxHeight int `validate:"gte=1"`
	DPI       int `validate:"gte=0"`
}

// FloorConfig holds the orientation-specific minimum output sizes.
type FloorConfig struct {
	Landscape Box
	Portrait  Box
}

// ThumbnailConfig controls the derived thumbnail.
type ThumbnailConfig struct {
	MaxSize int `validate:"gte=1"`
	MinSize int `validate:"gte=1"`
	Quality int `validate:"gte=1,lte=100"`
}

// MediaTypes lists what the image handler accepts.  Built once at startup.
type MediaTypes struct {
	Extensions   []string
	ContentTypes []string
}

// Config is the top-level configuration struct.
type Config struct {
	Policy     SecurityPolicy
	Output     OutputConfig
	Floors     FloorConfig
	Thumbnail  ThumbnailConfig
	MediaTypes MediaTypes

	// TempDir hosts the transient file of the last-resort decode strategy;
	// empty means os.TempDir().
	TempDir string

	// Logging.
	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		Policy: DefaultPolicy(),
		Output: OutputConfig{
			Format:      "webp",
			Quality:     85,
			JPEGQuality: 90,
			MaxWidth:    2500,
			MaxHeight:   2500,
			DPI:         96,
		},
		Floors: FloorConfig{
			Landscape: Box{Width: 1440, Height: 900},
			Portrait:  Box{Width: 900, Height: 1440},
		},
		Thumbnail: ThumbnailConfig{
			MaxSize: 400,
			MinSize: 200,
			Quality: 75,
		},
		MediaTypes: MediaTypes{
			Extensions: []string{
				".jpg", ".jpeg", ".jpe", ".jfif", ".png", ".gif",
				".bmp", ".tif", ".tiff", ".webp",
			},
			ContentTypes: []string{
				"image/jpeg", "image/jpg", "image/pjpeg", "image/png",
				"image/gif", "image/bmp", "image/x-ms-bmp", "image/tiff",
				"image/webp",
			},
		},
		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Thumbnail.MinSize > c.Thumbnail.MaxSize {
		return errors.New("config: Thumbnail.MinSize must not exceed Thumbnail.MaxSize")
	}
	if c.Floors.Landscape.Width < c.Floors.Landscape.Height {
		return errors.New("config: Floors.Landscape must be at least as wide as it is tall")
	}
	if c.Floors.Portrait.Width > c.Floors.Portrait.Height {
		return errors.New("config: Floors.Portrait must be at least as tall as it is wide")
	}
	return nil
}
