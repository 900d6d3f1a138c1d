// Package decoder turns untrusted bytes into a core.Surface through an
// ordered chain of decode strategies.
package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

const op = "decode"

// Chain tries each strategy in order until one yields pixels.  Every attempt
// shares the caller's deadline.  Safe for concurrent use.
type Chain struct {
	policy     config.SecurityPolicy
	tempDir    string
	strategies []Strategy
	extra      []Strategy
	logger     core.Logger
	metrics    core.MetricsCollector
}

// Option configures a Chain.
type Option func(*Chain)

// WithTempDir sets the directory for the temp-file strategy.
func WithTempDir(dir string) Option { return func(c *Chain) { c.tempDir = dir } }

// WithLogger attaches a logger for fallback diagnostics.
func WithLogger(l core.Logger) Option { return func(c *Chain) { c.logger = l } }

// WithMetrics records one observation per strategy attempt.
func WithMetrics(m core.MetricsCollector) Option { return func(c *Chain) { c.metrics = m } }

// WithStrategy adds s to the default chain, just before header repair.
func WithStrategy(s Strategy) Option {
	return func(c *Chain) { c.extra = append(c.extra, s) }
}

// WithStrategies replaces the whole chain.
func WithStrategies(ss ...Strategy) Option {
	return func(c *Chain) { c.strategies = append([]Strategy(nil), ss...) }
}

// NewChain builds the default five-strategy chain for policy.
func NewChain(policy config.SecurityPolicy, opts ...Option) *Chain {
	c := &Chain{policy: policy, logger: core.NopLogger()}
	for _, o := range opts {
		o(c)
	}
	if c.strategies == nil {
		c.strategies = []Strategy{
			Direct{},
			Bounded{MaxWidth: policy.MaxWidth, MaxHeight: policy.MaxHeight, MaxPixels: policy.MaxPixels()},
			ByteCopy{},
			TempFile{Dir: c.tempDir},
		}
		c.strategies = append(c.strategies, c.extra...)
		c.strategies = append(c.strategies, HeaderRepair{Retry: Direct{}, Guard: c.preflight})
	}
	return c
}

// Strategies returns the strategy names in attempt order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Decode returns a surface from the first strategy that succeeds.
//
// Failure modes: DimensionLimitExceeded when a header declares more pixels
// than the memory budget (checked before any strategy runs) or the bounded
// strategy trips its cap; ProcessingTimeout when ctx's deadline passes;
// CorruptImage with the attempt log when every strategy fails.
func (c *Chain) Decode(ctx context.Context, data []byte, filename string) (*core.Surface, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	if err := c.preflight(data); err != nil {
		return nil, apperrors.New(apperrors.CategoryDimensionLimit, op+".preflight", err)
	}

	guess := core.GuessFormat(data, filename)
	start := time.Now()
	var attempts apperrors.AttemptLog

	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return nil, c.interrupted(ctx, start, s.Name(), attempts)
		}

		img, err := c.attempt(ctx, s, data, guess)
		if err == nil {
			c.recordAttempt(s.Name(), true)
			if len(attempts) > 0 {
				c.logger.Debug("decode.recovered",
					"strategy", s.Name(), "guess", string(guess), "failed", attempts.String())
			}
			return c.surface(img, data, guess, s.Name()), nil
		}
		if ctx.Err() != nil {
			return nil, c.interrupted(ctx, start, s.Name(), attempts)
		}
		c.recordAttempt(s.Name(), false)

		var dle *apperrors.DimensionLimitError
		if errors.As(err, &dle) {
			return nil, apperrors.New(apperrors.CategoryDimensionLimit, op+"."+s.Name(), err)
		}
		attempts = attempts.Append(s.Name(), err)
		c.logger.Debug("decode.fallback", "strategy", s.Name(), "guess", string(guess), "error", err.Error())
	}

	return nil, apperrors.New(apperrors.CategoryCorruptImage, op, &apperrors.CorruptImageError{
		FormatGuess: describeGuess(guess, data),
		Attempts:    attempts,
	})
}

// attempt runs s on its own goroutine so a deadline can abandon it and a
// panicking decoder becomes an ordinary failure.
func (c *Chain) attempt(ctx context.Context, s Strategy, data []byte, guess core.Format) (image.Image, error) {
	type outcome struct {
		img image.Image
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("decoder panic: %v", r)}
			}
		}()
		img, err := s.Decode(ctx, data, guess)
		if err == nil && (img == nil || img.Bounds().Empty()) {
			err = apperrors.ErrInvalidDimensions
		}
		done <- outcome{img: img, err: err}
	}()

	select {
	case o := <-done:
		return o.img, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// preflight rejects headers that declare more pixels than the memory budget.
// Unreadable headers pass; the strategies decide what they are.
func (c *Chain) preflight(data []byte) error {
	limit := c.policy.MaxPixels()
	if limit <= 0 {
		return nil
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if int64(cfg.Width)*int64(cfg.Height) > limit {
		return &apperrors.DimensionLimitError{
			Width: cfg.Width, Height: cfg.Height, MaxPixels: limit, Source: "header",
		}
	}
	return nil
}

func (c *Chain) interrupted(ctx context.Context, start time.Time, strategy string, attempts apperrors.AttemptLog) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.New(apperrors.CategoryTimeout, op, &apperrors.TimeoutError{
			Timeout:  c.policy.ProcessingTimeout,
			Elapsed:  time.Since(start),
			Strategy: strategy,
			Attempts: attempts,
		})
	}
	return apperrors.New(apperrors.CategoryPipeline, op, ctx.Err())
}

func (c *Chain) surface(img image.Image, data []byte, guess core.Format, strategy string) *core.Surface {
	s := core.NewSurface(img, core.SniffFormat(data))
	if s.Format == core.FormatUnknown {
		s.Format = guess
	}
	meta := readSourceMeta(data, guess == core.FormatJPEG)
	s.Meta = core.SurfaceMeta{
		Orientation: meta.orientation,
		HasEXIF:     meta.hasEXIF,
		HasICC:      meta.hasICC,
		DPI:         meta.dpi,
		DecodedBy:   strategy,
	}
	return s
}

func (c *Chain) recordAttempt(strategy string, ok bool) {
	if c.metrics != nil {
		c.metrics.RecordDecodeAttempt(strategy, ok)
	}
}

// Probe reads dimensions and container metadata without decoding pixels.
func (c *Chain) Probe(ctx context.Context, data []byte, filename string) (*core.MediaMetadata, error) {
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CategoryInput, "probe", apperrors.ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, "probe", err)
	}
	guess := core.GuessFormat(data, filename)

	header := data
	cfg, name, err := image.DecodeConfig(bytes.NewReader(header))
	if err != nil && guess == core.FormatJPEG && len(data) >= 4 {
		header = utils.CloneBytes(data)
		header[0], header[1], header[2] = 0xFF, 0xD8, 0xFF
		var repairErr error
		cfg, name, repairErr = image.DecodeConfig(bytes.NewReader(header))
		if repairErr == nil {
			err = nil
		}
	}
	if err != nil {
		return nil, apperrors.New(apperrors.CategoryCorruptImage, "probe", &apperrors.CorruptImageError{
			FormatGuess: describeGuess(guess, data),
			Attempts:    apperrors.AttemptLog{}.Append("header", err),
		})
	}

	format := core.Format(name)
	meta := readSourceMeta(header, format == core.FormatJPEG)
	mime := utils.Describe(header)
	if mime == "" {
		mime = format.MIME()
	}
	return &core.MediaMetadata{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Format:      format,
		MIME:        mime,
		SizeBytes:   int64(len(data)),
		Orientation: meta.orientation,
		HasEXIF:     meta.hasEXIF,
	}, nil
}

// describeGuess enriches the format guess with a MIME sniff for error
// messages.
func describeGuess(guess core.Format, data []byte) string {
	if mime := utils.Describe(data); mime != "" && mime != guess.MIME() {
		return string(guess) + " (" + mime + ")"
	}
	return string(guess)
}

var _ core.Decoder = (*Chain)(nil)
