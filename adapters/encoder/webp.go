// Package encoder serialises normalized surfaces to the delivery formats.
package encoder

import (
	"context"
	"fmt"

	"github.com/chai2010/webp"

	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

// DefaultWebPQuality is used when neither the caller nor the encoder sets one.
const DefaultWebPQuality = 85

// WebP encodes lossy WebP with github.com/chai2010/webp.
type WebP struct {
	DefaultQuality int
}

func NewWebP(defaultQuality int) *WebP {
	return &WebP{DefaultQuality: utils.ClampQuality(defaultQuality, DefaultWebPQuality)}
}

func (w *WebP) CanEncode(format core.Format) bool { return format == core.FormatWebP }

func (w *WebP) Encode(ctx context.Context, s *core.Surface, opts core.EncodeOptions) ([]byte, error) {
	const op = "webp.encode"
	if err := checkSurface(ctx, op, s); err != nil {
		return nil, err
	}

	quality := utils.ClampQuality(opts.Quality, w.DefaultQuality)

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := webp.Encode(buf, s.Image, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %v", apperrors.ErrEncodeFailure, err))
	}
	return utils.CloneBytes(buf.Bytes()), nil
}

// checkSurface rejects cancelled contexts and degenerate input before any
// encoder sees it.
func checkSurface(ctx context.Context, op string, s *core.Surface) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	if s.Empty() {
		return apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %w", apperrors.ErrEncodeFailure, apperrors.ErrInvalidDimensions))
	}
	return nil
}

var _ core.Encoder = (*WebP)(nil)
