package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/media-ingest/config"
	apperrors "github.com/Skryldev/media-ingest/errors"
)

// Processor is the central orchestrator.  It holds only read-only
// configuration and atomic counters, so it is safe for concurrent use.
type Processor struct {
	cfg         config.Config
	registry    Registry
	decoder     Decoder
	normalizer  Normalizer
	thumbnailer Thumbnailer

	hooks   []Hook
	logger  Logger
	metrics MetricsCollector

	processedCount int64
	errorCount     int64
}

// New creates a Processor.  All collaborators are required.
func New(cfg config.Config, reg Registry, dec Decoder, norm Normalizer, thumb Thumbnailer) *Processor {
	return &Processor{
		cfg:         cfg,
		registry:    reg,
		decoder:     dec,
		normalizer:  norm,
		thumbnailer: thumb,
		logger:      NopLogger(),
	}
}

// SetLogger attaches a structured logger.
func (p *Processor) SetLogger(l Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetMetrics attaches a metrics collector.
func (p *Processor) SetMetrics(m MetricsCollector) { p.metrics = m }

// AddHook registers a phase hook.
func (p *Processor) AddHook(h Hook) { p.hooks = append(p.hooks, h) }

// Registry returns the encoder registry so callers can swap encoders after
// construction.
func (p *Processor) Registry() Registry { return p.registry }

// Config returns the configuration the processor was built with.
func (p *Processor) Config() config.Config { return p.cfg }

// Process runs one upload through validate, decode, validate, normalize and
// then encode and thumbnail in parallel.  Either both artifacts are returned
// or the first error in that order.
func (p *Processor) Process(ctx context.Context, in RawInput, opts ProcessOptions) (*ProcessingResult, error) {
	start := time.Now()
	id := uuid.NewString()
	timings := make(map[string]time.Duration, 8)

	res, err := p.process(ctx, id, in, opts, timings)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		p.logger.Warn("ingest.failed",
			"id", id,
			"filename", in.Filename,
			"size", len(in.Data),
			"category", string(apperrors.CategoryOf(err)),
			"error", err.Error(),
		)
		return nil, err
	}

	atomic.AddInt64(&p.processedCount, 1)
	res.ID = id
	res.StepTimings = timings
	res.ProcessingTime = time.Since(start)
	if p.metrics != nil {
		p.metrics.RecordProcessingTime("total", res.ProcessingTime)
		p.metrics.RecordThroughput(int64(len(in.Data)))
	}
	p.logger.Info("ingest.done",
		"id", id,
		"filename", in.Filename,
		"source_format", string(res.SourceFormat),
		"decoded_by", res.DecodedBy,
		"width", res.Primary.Width,
		"height", res.Primary.Height,
		"bytes", res.Primary.SizeBytes,
		"thumb_bytes", res.Thumbnail.SizeBytes,
		"duration_ms", res.ProcessingTime.Milliseconds(),
	)
	return res, nil
}

func (p *Processor) process(ctx context.Context, id string, in RawInput, opts ProcessOptions, timings map[string]time.Duration) (*ProcessingResult, error) {
	policy := p.cfg.Policy

	if err := p.phase(ctx, "validate.pre", nil, timings, func() error {
		return ValidatePreDecode(in, policy)
	}); err != nil {
		return nil, err
	}
	p.logger.Debug("ingest.accepted", "id", id, "filename", in.Filename, "size", len(in.Data))

	var surface *Surface
	err := p.phase(ctx, "decode", nil, timings, func() error {
		dctx, cancel := context.WithTimeout(ctx, policy.ProcessingTimeout)
		defer cancel()
		var err error
		surface, err = p.decoder.Decode(dctx, in.Data, in.Filename)
		return apperrors.Wrap(apperrors.CategoryCorruptImage, "decode", err)
	})
	defer surface.Release()
	if err != nil {
		return nil, err
	}

	if err := p.phase(ctx, "validate.post", surface, timings, func() error {
		return ValidatePostDecode(surface, policy)
	}); err != nil {
		return nil, err
	}

	res := &ProcessingResult{
		SourceFormat: surface.Format,
		DecodedBy:    surface.Meta.DecodedBy,
		SourceWidth:  surface.Width,
		SourceHeight: surface.Height,
	}

	var normalized *Surface
	err = p.phase(ctx, "normalize", surface, timings, func() error {
		var (
			stepTimings map[string]time.Duration
			err         error
		)
		normalized, stepTimings, err = p.normalizer.Normalize(ctx, surface, p.normalizeOptions(opts))
		for k, v := range stepTimings {
			timings["normalize."+k] = v
		}
		return apperrors.Wrap(apperrors.CategoryPipeline, "normalize", err)
	})
	defer normalized.Release()
	if err != nil {
		return nil, err
	}
	if normalized.Empty() {
		return nil, apperrors.New(apperrors.CategoryPipeline, "normalize", apperrors.ErrInvalidDimensions)
	}

	var (
		wg                 sync.WaitGroup
		mu                 sync.Mutex
		encErr, thumbErr   error
		primary            *ConversionResult
		thumb              *ThumbnailResult
		encTime, thumbTime time.Duration
	)
	p.notifyBefore(ctx, "encode", normalized)
	p.notifyBefore(ctx, "thumbnail", normalized)
	wg.Add(2)
	go func() {
		defer wg.Done()
		t := time.Now()
		primary, encErr = p.encode(ctx, normalized, opts)
		encTime = time.Since(t)
		p.observe(ctx, "encode", normalized, encTime, encErr, &mu)
	}()
	go func() {
		defer wg.Done()
		t := time.Now()
		thumb, thumbErr = p.thumbnailer.Thumbnail(ctx, normalized)
		thumbErr = apperrors.Wrap(apperrors.CategoryEncode, "thumbnail", thumbErr)
		thumbTime = time.Since(t)
		p.observe(ctx, "thumbnail", normalized, thumbTime, thumbErr, &mu)
	}()
	wg.Wait()
	timings["encode"] = encTime
	timings["thumbnail"] = thumbTime

	if encErr != nil {
		return nil, encErr
	}
	if thumbErr != nil {
		return nil, thumbErr
	}

	res.Primary = primary
	res.Thumbnail = thumb
	return res, nil
}

// encode produces the main artifact in the requested (or configured) format.
func (p *Processor) encode(ctx context.Context, s *Surface, opts ProcessOptions) (*ConversionResult, error) {
	format := opts.Format
	if format == "" {
		format = Format(p.cfg.Output.Format)
	}
	op := "encode." + string(format)

	quality := opts.Quality
	if quality <= 0 {
		quality = p.cfg.Output.Quality
		if format == FormatJPEG {
			quality = p.cfg.Output.JPEGQuality
		}
	}
	quality = clamp(quality, 1, 100)

	enc, ok := p.registry.EncoderFor(format)
	if !ok || !enc.CanEncode(format) {
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}

	data, err := enc.Encode(ctx, s, EncodeOptions{Quality: quality, DPI: s.Meta.DPI})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return &ConversionResult{
		Data:      data,
		Width:     s.Width,
		Height:    s.Height,
		Format:    format,
		SizeBytes: int64(len(data)),
		Quality:   quality,
		DPI:       s.Meta.DPI,
	}, nil
}

// normalizeOptions resolves the effective ceiling: the smallest of the
// security policy, the delivery ceiling and any caller override.
func (p *Processor) normalizeOptions(opts ProcessOptions) NormalizeOptions {
	w := min(p.cfg.Policy.MaxWidth, p.cfg.Output.MaxWidth)
	h := min(p.cfg.Policy.MaxHeight, p.cfg.Output.MaxHeight)
	if opts.MaxWidth > 0 {
		w = min(w, opts.MaxWidth)
	}
	if opts.MaxHeight > 0 {
		h = min(h, opts.MaxHeight)
	}
	return NormalizeOptions{MaxWidth: w, MaxHeight: h}
}

// Metadata reports header information for an upload without decoding pixels.
func (p *Processor) Metadata(ctx context.Context, in RawInput) (*MediaMetadata, error) {
	if err := ValidatePreDecode(in, p.cfg.Policy); err != nil {
		return nil, err
	}
	dctx, cancel := context.WithTimeout(ctx, p.cfg.Policy.ProcessingTimeout)
	defer cancel()
	md, err := p.decoder.Probe(dctx, in.Data, in.Filename)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryCorruptImage, "metadata", err)
	}
	return md, nil
}

// Batch processes multiple inputs concurrently (fan-out / fan-in).  Results
// and errors are index-aligned with inputs.
func (p *Processor) Batch(ctx context.Context, inputs []RawInput, opts ProcessOptions) ([]*ProcessingResult, []error) {
	results := make([]*ProcessingResult, len(inputs))
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup

	for i, in := range inputs {
		wg.Add(1)
		go func(idx int, in RawInput) {
			defer wg.Done()
			results[idx], errs[idx] = p.Process(ctx, in, opts)
		}(i, in)
	}
	wg.Wait()
	return results, errs
}

// phase runs fn bracketed by hooks, timing and metrics.  The parent context
// is checked first so a cancelled request does no further work.
func (p *Processor) phase(ctx context.Context, name string, s *Surface, timings map[string]time.Duration, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryPipeline, name, err)
	}
	p.notifyBefore(ctx, name, s)
	t := time.Now()
	err := fn()
	d := time.Since(t)
	timings[name] = d
	p.notifyAfter(ctx, name, s, d, err)
	p.record(name, d, err)
	return err
}

// observe finishes a phase that ran on its own goroutine.  Hooks are
// serialised by mu.
func (p *Processor) observe(ctx context.Context, name string, s *Surface, d time.Duration, err error, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	p.notifyAfter(ctx, name, s, d, err)
	p.record(name, d, err)
}

func (p *Processor) record(name string, d time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordProcessingTime(name, d)
	if err != nil {
		cat := apperrors.CategoryOf(err)
		if cat == "" && errors.Is(err, context.Canceled) {
			cat = apperrors.CategoryPipeline
		}
		p.metrics.RecordError(name, string(cat))
	}
}

func (p *Processor) notifyBefore(ctx context.Context, name string, s *Surface) {
	for _, h := range p.hooks {
		h.BeforeStep(ctx, name, s)
	}
}

func (p *Processor) notifyAfter(ctx context.Context, name string, s *Surface, d time.Duration, err error) {
	for _, h := range p.hooks {
		h.AfterStep(ctx, name, s, d, err)
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ProcessedCount returns the total number of successfully processed uploads.
func (p *Processor) ProcessedCount() int64 { return atomic.LoadInt64(&p.processedCount) }

// ErrorCount returns the total number of failed uploads.
func (p *Processor) ErrorCount() int64 { return atomic.LoadInt64(&p.errorCount) }
