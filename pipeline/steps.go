package pipeline

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

// ── Orientation ───────────────────────────────────────────────────────────────

// OrientStep applies the EXIF orientation tag to the pixels and resets it to 1.
type OrientStep struct{}

func (s *OrientStep) Name() string { return "orient" }

func (s *OrientStep) Execute(ctx context.Context, in *core.Surface) (*core.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, apperrors.ErrInvalidDimensions
	}
	o := in.Meta.Orientation
	if o <= 1 || o > 8 {
		return in, nil
	}
	out := in.WithImage(applyOrientation(in.Image, o))
	out.Meta.Orientation = 1
	return out, nil
}

// applyOrientation maps EXIF orientations 2..8 onto imaging transforms.
// imaging rotates counter-clockwise.
func applyOrientation(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// ── Dimension policy ─────────────────────────────────────────────────────────

// DimensionPolicyStep enforces the orientation-aware floor and the ceiling.
// The target size is planned first and the image resampled once, so no
// intermediate larger than the ceiling is ever allocated.
type DimensionPolicyStep struct {
	Floors    config.FloorConfig
	MaxWidth  int
	MaxHeight int
	Filter    imaging.ResampleFilter // zero value means Lanczos
}

func (s *DimensionPolicyStep) Name() string { return "resize" }

// Plan returns the output size for a w x h input.
func (s *DimensionPolicyStep) Plan(w, h int) (int, int) {
	floor := s.Floors.Portrait
	if utils.IsLandscape(w, h) {
		floor = s.Floors.Landscape
	}
	tw, th := utils.ScaleToFloor(w, h, floor.Width, floor.Height)
	if s.MaxWidth > 0 && s.MaxHeight > 0 {
		tw, th = utils.FitWithin(tw, th, s.MaxWidth, s.MaxHeight)
	}
	return tw, th
}

func (s *DimensionPolicyStep) Execute(ctx context.Context, in *core.Surface) (*core.Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, apperrors.ErrInvalidDimensions
	}
	tw, th := s.Plan(in.Width, in.Height)
	if tw == in.Width && th == in.Height {
		return in, nil
	}
	filter := s.Filter
	if filter.Support == 0 {
		filter = imaging.Lanczos
	}
	return in.WithImage(imaging.Resize(in.Image, tw, th, filter)), nil
}

// ── Resolution ────────────────────────────────────────────────────────────────

// ResolutionStep stamps a fixed DPI on the surface for the encoders to write.
type ResolutionStep struct {
	DPI int
}

func (s *ResolutionStep) Name() string { return "resolution" }

func (s *ResolutionStep) Execute(_ context.Context, in *core.Surface) (*core.Surface, error) {
	out := *in
	out.Meta.DPI = s.DPI
	return &out, nil
}

// ── Metadata strip ────────────────────────────────────────────────────────────

// StripMetadataStep drops EXIF and ICC markers.  Pixels are untouched; the
// encoders never copy source metadata, so this only keeps the surface honest.
type StripMetadataStep struct{}

func (s *StripMetadataStep) Name() string { return "strip_metadata" }

func (s *StripMetadataStep) Execute(_ context.Context, in *core.Surface) (*core.Surface, error) {
	out := *in
	out.Meta.HasEXIF = false
	out.Meta.HasICC = false
	out.Meta.Orientation = 0
	return &out, nil
}

var (
	_ core.Step = (*OrientStep)(nil)
	_ core.Step = (*DimensionPolicyStep)(nil)
	_ core.Step = (*ResolutionStep)(nil)
	_ core.Step = (*StripMetadataStep)(nil)
)
