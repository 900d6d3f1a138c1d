// Package mediaingest validates, decodes, normalizes and re-encodes untrusted
// image uploads into a WebP (or JPEG) artifact plus a WebP thumbnail.
package mediaingest

import (
	"context"
	"fmt"
	"io"

	"github.com/Skryldev/media-ingest/adapters/decoder"
	"github.com/Skryldev/media-ingest/adapters/encoder"
	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/pipeline"
	"github.com/Skryldev/media-ingest/utils"
)

// Re-export Format constants for convenience.
const (
	WebP = core.FormatWebP
	JPEG = core.FormatJPEG
)

type (
	RawInput         = core.RawInput
	ProcessOptions   = core.ProcessOptions
	ProcessingResult = core.ProcessingResult
	ConversionResult = core.ConversionResult
	ThumbnailResult  = core.ThumbnailResult
	MediaMetadata    = core.MediaMetadata
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Option customises a Processor at construction.
type Option func(*options)

type options struct {
	logger     core.Logger
	metrics    core.MetricsCollector
	hooks      []core.Hook
	stepHooks  []core.Hook
	strategies []decoder.Strategy
	decoder    core.Decoder
}

// WithLogger attaches a structured logger to every component.
func WithLogger(l core.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics attaches a metrics collector to the processor and decoder.
func WithMetrics(m core.MetricsCollector) Option { return func(o *options) { o.metrics = m } }

// WithHook registers an observer for processor phases and normalization steps.
func WithHook(h core.Hook) Option { return func(o *options) { o.hooks = append(o.hooks, h) } }

// WithStepHook registers an observer for normalization steps only.
// hooks.MetricsHook belongs here: the processor already reports its phases.
func WithStepHook(h core.Hook) Option {
	return func(o *options) { o.stepHooks = append(o.stepHooks, h) }
}

// WithDecodeStrategy adds a strategy to the decode chain, ahead of header
// repair.  The libvips backend plugs in here.
func WithDecodeStrategy(s decoder.Strategy) Option {
	return func(o *options) { o.strategies = append(o.strategies, s) }
}

// WithDecoder replaces the decode chain entirely.
func WithDecoder(d core.Decoder) Option { return func(o *options) { o.decoder = d } }

// Processor is the primary entry point.
type Processor struct {
	inner    *core.Processor
	reg      *core.DefaultRegistry
	handlers *core.HandlerRegistry
}

// New validates cfg and returns a fully wired Processor with the pure-Go WebP
// and JPEG encoders registered.
func New(cfg config.Config, opts ...Option) (*Processor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "new", err)
	}
	o := options{logger: core.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	reg := core.NewRegistry()
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(cfg.Output.Quality))
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(cfg.Output.JPEGQuality))

	dec := o.decoder
	if dec == nil {
		chainOpts := []decoder.Option{
			decoder.WithTempDir(cfg.TempDir),
			decoder.WithLogger(o.logger),
		}
		if o.metrics != nil {
			chainOpts = append(chainOpts, decoder.WithMetrics(o.metrics))
		}
		for _, s := range o.strategies {
			chainOpts = append(chainOpts, decoder.WithStrategy(s))
		}
		dec = decoder.NewChain(cfg.Policy, chainOpts...)
	}

	norm := pipeline.NewNormalizer(cfg)
	for _, h := range append(o.hooks, o.stepHooks...) {
		norm.AddHook(h)
	}
	thumb := pipeline.NewThumbnailer(cfg.Thumbnail, reg)

	inner := core.New(cfg, reg, dec, norm, thumb)
	inner.SetLogger(o.logger)
	if o.metrics != nil {
		inner.SetMetrics(o.metrics)
	}
	for _, h := range o.hooks {
		inner.AddHook(h)
	}

	p := &Processor{inner: inner, reg: reg}
	p.handlers = core.NewHandlerRegistry(NewImageHandler(inner, cfg.MediaTypes))
	return p, nil
}

// RegisterEncoder registers a custom encoder for the given format.
func (p *Processor) RegisterEncoder(f core.Format, e core.Encoder) { p.reg.RegisterEncoder(f, e) }

// Registry exposes the encoder registry shared by the main encode and the
// thumbnailer, e.g. for vips.RegisterVipsBackend.
func (p *Processor) Registry() core.Registry { return p.reg }

// RegisterHandler appends a media handler; the image handler keeps priority.
func (p *Processor) RegisterHandler(h core.Handler) { p.handlers.Register(h) }

// Process converts one upload into its main artifact and thumbnail.
func (p *Processor) Process(ctx context.Context, in RawInput, opts ProcessOptions) (*ProcessingResult, error) {
	return p.inner.Process(ctx, in, opts)
}

// Batch processes independent uploads concurrently.  Results and errors are
// index-aligned with inputs.
func (p *Processor) Batch(ctx context.Context, inputs []RawInput, opts ProcessOptions) ([]*ProcessingResult, []error) {
	return p.inner.Batch(ctx, inputs, opts)
}

// Metadata reports header-level information without decoding pixels.
func (p *Processor) Metadata(ctx context.Context, in RawInput) (*MediaMetadata, error) {
	return p.inner.Metadata(ctx, in)
}

// Dispatch routes in to the first handler that accepts its filename or
// content type.  With neither hint, the sniffed format stands in for the
// content type.
func (p *Processor) Dispatch(ctx context.Context, in RawInput, opts ProcessOptions) (*ProcessingResult, error) {
	h, err := p.handlerFor(in)
	if err != nil {
		return nil, err
	}
	return h.Process(ctx, in, opts)
}

func (p *Processor) handlerFor(in RawInput) (core.Handler, error) {
	ct := in.ContentType
	if in.Filename == "" && ct == "" {
		ct = core.SniffFormat(in.Data).MIME()
	}
	h, ok := p.handlers.Dispatch(in.Filename, ct)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryInput, "dispatch",
			fmt.Errorf("%w: filename %q, content type %q", apperrors.ErrUnsupportedMedia, in.Filename, ct))
	}
	return h, nil
}

// Handlers lists the registered handler names in dispatch order.
func (p *Processor) Handlers() []string { return p.handlers.Names() }

// Stats returns lightweight processing statistics.
func (p *Processor) Stats() (processed, errors int64) {
	return p.inner.ProcessedCount(), p.inner.ErrorCount()
}

// ── Input constructors ────────────────────────────────────────────────────────

// FromReader reads an upload stream into a RawInput, failing with a size
// limit error once more than max bytes arrive (max <= 0 disables the limit).
func FromReader(ctx context.Context, r io.Reader, filename, contentType string, max int64) (RawInput, error) {
	data, err := utils.ReadLimited(ctx, r, max)
	if err != nil {
		return RawInput{}, err
	}
	return RawInput{Data: data, Filename: filename, ContentType: contentType}, nil
}

// FromBytes wraps an in-memory upload.
func FromBytes(data []byte, filename string) RawInput {
	return RawInput{Data: data, Filename: filename}
}
