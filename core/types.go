package core

import (
	"context"
	"image"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatWebP    Format = "webp"
	FormatUnknown Format = "unknown"
)

// RawInput is one upload as handed over by the caller.  Filename and
// ContentType are hints only; nothing downstream trusts them for correctness.
type RawInput struct {
	Data        []byte
	Filename    string
	ContentType string
}

// SurfaceMeta is the non-pixel information carried alongside a Surface.
type SurfaceMeta struct {
	Orientation int // EXIF orientation tag (1-8); 0 when absent
	HasEXIF     bool
	HasICC      bool
	DPI         int
	DecodedBy   string // name of the decode strategy that produced the pixels
}

// Surface is a decoded pixel buffer owned by exactly one Process call.
// It is never cached or shared across requests.
type Surface struct {
	Image  image.Image
	Width  int
	Height int
	// Format is the sniffed source format, for diagnostics.
	Format Format
	Meta   SurfaceMeta
}

// NewSurface wraps img, taking its dimensions from the image bounds.
func NewSurface(img image.Image, format Format) *Surface {
	b := img.Bounds()
	return &Surface{Image: img, Width: b.Dx(), Height: b.Dy(), Format: format}
}

// WithImage returns a copy of s holding img, with dimensions updated.
func (s *Surface) WithImage(img image.Image) *Surface {
	out := *s
	b := img.Bounds()
	out.Image = img
	out.Width = b.Dx()
	out.Height = b.Dy()
	return &out
}

// Release drops the pixel buffer.  Safe on nil and safe to call twice.
func (s *Surface) Release() {
	if s != nil {
		s.Image = nil
	}
}

// Empty reports whether s carries no usable pixels.
func (s *Surface) Empty() bool {
	return s == nil || s.Image == nil || s.Width <= 0 || s.Height <= 0
}

// ConversionResult is an encoded artifact.  The caller owns Data.
type ConversionResult struct {
	Data      []byte
	Width     int
	Height    int
	Format    Format
	SizeBytes int64
	Quality   int
	DPI       int
}

// ThumbnailResult has the same shape as ConversionResult; its dimensions are
// bounded by the thumbnail policy.
type ThumbnailResult ConversionResult

// ProcessingResult is returned to the caller after the full pipeline completes.
type ProcessingResult struct {
	ID        string
	Primary   *ConversionResult
	Thumbnail *ThumbnailResult

	SourceFormat Format
	DecodedBy    string
	SourceWidth  int
	SourceHeight int

	// Observability.
	ProcessingTime time.Duration
	StepTimings    map[string]time.Duration
}

// MediaMetadata is what can be learned about an upload without decoding
// its pixels.
type MediaMetadata struct {
	Width       int
	Height      int
	Format      Format
	MIME        string
	SizeBytes   int64
	Orientation int
	HasEXIF     bool
}

// ProcessOptions are per-call overrides.  The zero value uses the configured
// defaults.
type ProcessOptions struct {
	Format  Format // webp or jpeg
	Quality int
	// MaxWidth / MaxHeight tighten the delivery ceiling.  They can never
	// loosen it beyond the security policy.
	MaxWidth  int
	MaxHeight int
}

// NormalizeOptions are forwarded to the Normalizer for one call.
type NormalizeOptions struct {
	MaxWidth  int
	MaxHeight int
}

// Step is the fundamental pipeline building block.  Each Step transforms a
// *Surface and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, s *Surface) (*Surface, error)
}

// Hook is an optional observer invoked around pipeline steps and processor
// phases.  s may be nil before decode.  Hooks must be safe for concurrent
// use: encode and thumbnail run in parallel.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, s *Surface)
	AfterStep(ctx context.Context, stepName string, s *Surface, d time.Duration, err error)
}
