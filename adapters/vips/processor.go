// Package vips provides an optional libvips backend: an extra decode strategy
// and WebP/JPEG encoders backed by govips.  Requires libvips at runtime.
package vips

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/media-ingest/adapters/decoder"
	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	MaxCacheSize int
	MaxWorkers   int
	ReportLeaks  bool
	// ReductionEffort is the WebP encoder method, 0 (fast) to 6 (best).
	ReductionEffort int
}

// Backend is a libvips-powered decode strategy and encoder factory.
// Safe for concurrent use across goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits; libvips cannot be restarted.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.ReductionEffort <= 0 || cfg.ReductionEffort > 6 {
		cfg.ReductionEffort = 6
	}
	govips.LoggingSettings(nil, govips.LogLevelWarning)
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources. Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// ─── Decode strategy ──────────────────────────────────────────────────────────

func (b *Backend) Name() string { return "vips" }

// Decode loads the buffer with libvips, which tolerates many inputs the Go
// decoders reject, and hands back a Go image via a lossless PNG round trip.
func (b *Backend) Decode(ctx context.Context, data []byte, _ core.Format) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	ep := govips.NewPngExportParams()
	ep.Compression = 1
	ep.StripMetadata = true
	buf, _, err := ref.ExportPng(ep)
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	return png.Decode(bytes.NewReader(buf))
}

// ─── Encoders ────────────────────────────────────────────────────────────────

// Encoder encodes one format through libvips.
type Encoder struct {
	backend *Backend
	format  core.Format
	quality int
}

// WebPEncoder returns a WebP encoder using the configured reduction effort.
func (b *Backend) WebPEncoder(defaultQuality int) *Encoder {
	return &Encoder{backend: b, format: core.FormatWebP, quality: utils.ClampQuality(defaultQuality, 85)}
}

// JPEGEncoder returns a JPEG encoder.
func (b *Backend) JPEGEncoder(defaultQuality int) *Encoder {
	return &Encoder{backend: b, format: core.FormatJPEG, quality: utils.ClampQuality(defaultQuality, 90)}
}

func (e *Encoder) CanEncode(f core.Format) bool { return f == e.format }

func (e *Encoder) Encode(ctx context.Context, s *core.Surface, opts core.EncodeOptions) ([]byte, error) {
	op := "vips.encode." + string(e.format)
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	if s.Empty() {
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %w", apperrors.ErrEncodeFailure, apperrors.ErrInvalidDimensions))
	}

	ref, err := importSurface(s)
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op, fmt.Errorf("%w: %v", apperrors.ErrEncodeFailure, err))
	}
	defer ref.Close()

	quality := utils.ClampQuality(opts.Quality, e.quality)
	var out []byte
	switch e.format {
	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.Lossless = false
		ep.StripMetadata = true
		ep.ReductionEffort = e.backend.cfg.ReductionEffort
		out, _, err = ref.ExportWebp(ep)
	case core.FormatJPEG:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		out, _, err = ref.ExportJpeg(ep)
	default:
		err = fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, e.format)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op, fmt.Errorf("%w: %v", apperrors.ErrEncodeFailure, err))
	}
	return out, nil
}

// importSurface hands the pixels to libvips through a fast PNG encode.
func importSurface(s *core.Surface) (*govips.ImageRef, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, s.Image); err != nil {
		return nil, err
	}
	return govips.NewImageFromBuffer(buf.Bytes())
}

// ─── RegisterVipsBackend ──────────────────────────────────────────────────────

// RegisterVipsBackend replaces the pure-Go encoders with libvips for WebP and
// JPEG.
func RegisterVipsBackend(reg core.Registry, b *Backend, webpQuality, jpegQuality int) {
	reg.RegisterEncoder(core.FormatWebP, b.WebPEncoder(webpQuality))
	reg.RegisterEncoder(core.FormatJPEG, b.JPEGEncoder(jpegQuality))
}

// compile-time interface checks
var (
	_ core.Encoder     = (*Encoder)(nil)
	_ decoder.Strategy = (*Backend)(nil)
)
