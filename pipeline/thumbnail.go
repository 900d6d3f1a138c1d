package pipeline

import (
	"context"
	"fmt"

	"github.com/nfnt/resize"

	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

// Thumbnailer derives the small WebP preview.  It only reads the surface, so
// it can run alongside the main encode.
type Thumbnailer struct {
	MaxSize int
	MinSize int
	Quality int
	// Registry supplies the WebP encoder.
	Registry core.Registry
}

// NewThumbnailer returns a Thumbnailer for cfg that encodes through reg.
func NewThumbnailer(cfg config.ThumbnailConfig, reg core.Registry) *Thumbnailer {
	return &Thumbnailer{MaxSize: cfg.MaxSize, MinSize: cfg.MinSize, Quality: cfg.Quality, Registry: reg}
}

// Dimensions returns the thumbnail size for a w x h source.
func (t *Thumbnailer) Dimensions(w, h int) (int, int) {
	return utils.ThumbnailDimensions(w, h, t.MaxSize, t.MinSize)
}

// Thumbnail implements core.Thumbnailer.
func (t *Thumbnailer) Thumbnail(ctx context.Context, s *core.Surface) (*core.ThumbnailResult, error) {
	const op = "thumbnail"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, op, err)
	}
	if s.Empty() {
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %w", apperrors.ErrEncodeFailure, apperrors.ErrInvalidDimensions))
	}
	enc, ok := t.Registry.EncoderFor(core.FormatWebP)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, core.FormatWebP))
	}

	tw, th := t.Dimensions(s.Width, s.Height)
	small := s
	if tw != s.Width || th != s.Height {
		small = s.WithImage(resize.Resize(uint(tw), uint(th), s.Image, resize.Lanczos3))
	}

	quality := utils.ClampQuality(t.Quality, 75)
	data, err := enc.Encode(ctx, small, core.EncodeOptions{Quality: quality, DPI: s.Meta.DPI})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	return &core.ThumbnailResult{
		Data:      data,
		Width:     small.Width,
		Height:    small.Height,
		Format:    core.FormatWebP,
		SizeBytes: int64(len(data)),
		Quality:   quality,
		DPI:       s.Meta.DPI,
	}, nil
}

var _ core.Thumbnailer = (*Thumbnailer)(nil)
