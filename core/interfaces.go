package core

import (
	"context"
	"time"
)

// Decoder turns raw bytes into a Surface.  The default implementation is the
// strategy chain in adapters/decoder.
type Decoder interface {
	// Decode must honour ctx's deadline.
	Decode(ctx context.Context, data []byte, filename string) (*Surface, error)
	// Probe reads header information only; it never allocates pixels.
	Probe(ctx context.Context, data []byte, filename string) (*MediaMetadata, error)
}

// Normalizer applies orientation and dimension policy to a decoded surface.
type Normalizer interface {
	Normalize(ctx context.Context, s *Surface, opts NormalizeOptions) (*Surface, map[string]time.Duration, error)
}

// Thumbnailer derives the thumbnail artifact from a normalized surface.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, s *Surface) (*ThumbnailResult, error)
}

// Encoder serialises a Surface in one target format.
// Implementations live in adapters/encoder/ and adapters/vips/.
type Encoder interface {
	Encode(ctx context.Context, s *Surface, opts EncodeOptions) ([]byte, error)
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality int // 1-100; 0 = use encoder default
	DPI     int // written where the format has a field for it
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(stepName string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordDecodeAttempt(strategy string, ok bool)
	RecordError(stepName string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Registry maps output formats to Encoder implementations.
type Registry interface {
	EncoderFor(format Format) (Encoder, bool)
	RegisterEncoder(format Format, e Encoder)
}

// Handler is one media kind the ingestion layer can accept.
type Handler interface {
	Name() string
	CanHandle(filename, contentType string) bool
	Process(ctx context.Context, in RawInput, opts ProcessOptions) (*ProcessingResult, error)
	Metadata(ctx context.Context, in RawInput) (*MediaMetadata, error)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }
