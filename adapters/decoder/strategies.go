package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

// Strategy is one way of turning bytes into pixels.  hint is the format
// guess and must not be trusted.
type Strategy interface {
	Name() string
	Decode(ctx context.Context, data []byte, hint core.Format) (image.Image, error)
}

// ── direct ────────────────────────────────────────────────────────────────────

// Direct hands the buffer to the registered image decoders as-is.
type Direct struct{}

func (Direct) Name() string { return "direct" }

func (Direct) Decode(_ context.Context, data []byte, _ core.Format) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data))
}

// ── bounded ───────────────────────────────────────────────────────────────────

// frameDecoders decode exactly one frame.  gif.Decode returns the first
// frame of an animation and ignores the rest.
var frameDecoders = map[string]func(io.Reader) (image.Image, error){
	"jpeg": jpeg.Decode,
	"png":  png.Decode,
	"gif":  gif.Decode,
	"bmp":  bmp.Decode,
	"tiff": tiff.Decode,
	"webp": webp.Decode,
}

// Bounded reads the header first and refuses anything over the hard cap,
// then decodes a single frame with the format's own decoder and checks the
// result against both the cap and the header claim.
type Bounded struct {
	MaxWidth  int
	MaxHeight int
	MaxPixels int64 // 0 disables the pixel cap
}

func (Bounded) Name() string { return "bounded" }

func (b Bounded) Decode(_ context.Context, data []byte, _ core.Format) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := b.check(cfg.Width, cfg.Height, "header"); err != nil {
		return nil, err
	}
	dec, ok := frameDecoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format)
	}
	img, err := dec(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if err := b.check(w, h, "decoded"); err != nil {
		return nil, err
	}
	if w > cfg.Width || h > cfg.Height {
		return nil, fmt.Errorf("decoded %dx%d exceeds header claim %dx%d", w, h, cfg.Width, cfg.Height)
	}
	return img, nil
}

func (b Bounded) check(w, h int, source string) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %s %dx%d", apperrors.ErrInvalidDimensions, source, w, h)
	}
	if (b.MaxWidth > 0 && w > b.MaxWidth) || (b.MaxHeight > 0 && h > b.MaxHeight) {
		return &apperrors.DimensionLimitError{
			Width: w, Height: h, MaxWidth: b.MaxWidth, MaxHeight: b.MaxHeight, Source: source,
		}
	}
	if b.MaxPixels > 0 && int64(w)*int64(h) > b.MaxPixels {
		return &apperrors.DimensionLimitError{
			Width: w, Height: h, MaxPixels: b.MaxPixels, Source: source,
		}
	}
	return nil
}

// ── bytecopy ──────────────────────────────────────────────────────────────────

// ByteCopy decodes from a freshly allocated copy behind a plain
// (non-seekable) bytes.Buffer.
type ByteCopy struct{}

func (ByteCopy) Name() string { return "bytecopy" }

func (ByteCopy) Decode(_ context.Context, data []byte, _ core.Format) (image.Image, error) {
	return imaging.Decode(bytes.NewBuffer(utils.CloneBytes(data)))
}

// ── tempfile ──────────────────────────────────────────────────────────────────

// TempFile writes the buffer to disk under the guessed extension and decodes
// from the file.  The file is removed on every exit path, and as soon as ctx
// is cancelled even if the decoder is still running.
type TempFile struct {
	Dir string // "" means os.TempDir()
}

func (TempFile) Name() string { return "tempfile" }

func (t TempFile) Decode(ctx context.Context, data []byte, hint core.Format) (image.Image, error) {
	f, err := os.CreateTemp(t.Dir, "mediaingest-*"+hint.Extension())
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	var once sync.Once
	remove := func() { once.Do(func() { _ = os.Remove(path) }) }
	stop := context.AfterFunc(ctx, remove)
	defer func() {
		stop()
		remove()
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return imaging.Open(path)
}

// ── header-repair ─────────────────────────────────────────────────────────────

var errNotJPEG = errors.New("skipped: format guess is not JPEG")

// HeaderRepair restores a canonical JPEG start-of-image marker and retries
// Retry (direct decode by default).  Guard, when set, vets the repaired
// buffer before any pixels are allocated.
type HeaderRepair struct {
	Retry Strategy
	Guard func(data []byte) error
}

func (HeaderRepair) Name() string { return "header-repair" }

func (h HeaderRepair) Decode(ctx context.Context, data []byte, hint core.Format) (image.Image, error) {
	if hint != core.FormatJPEG {
		return nil, fmt.Errorf("%w (%s)", errNotJPEG, hint)
	}
	if len(data) < 4 {
		return nil, errors.New("buffer too short to carry a JPEG body")
	}
	fixed := utils.CloneBytes(data)
	fixed[0], fixed[1], fixed[2] = 0xFF, 0xD8, 0xFF
	if h.Guard != nil {
		if err := h.Guard(fixed); err != nil {
			return nil, err
		}
	}
	retry := h.Retry
	if retry == nil {
		retry = Direct{}
	}
	return retry.Decode(ctx, fixed, hint)
}

var (
	_ Strategy = Direct{}
	_ Strategy = Bounded{}
	_ Strategy = ByteCopy{}
	_ Strategy = TempFile{}
	_ Strategy = HeaderRepair{}
)
