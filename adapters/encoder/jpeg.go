package encoder

import (
	"context"
	"encoding/binary"
	"fmt"
	"image/jpeg"

	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

// DefaultJPEGQuality is used when neither the caller nor the encoder sets one.
const DefaultJPEGQuality = 90

// JPEG encodes baseline JPEG.  Only used when a consumer asks for it.
type JPEG struct {
	DefaultQuality int // used when EncodeOptions.Quality == 0
}

func NewJPEG(defaultQuality int) *JPEG {
	return &JPEG{DefaultQuality: utils.ClampQuality(defaultQuality, DefaultJPEGQuality)}
}

func (j *JPEG) CanEncode(format core.Format) bool {
	return format == core.FormatJPEG
}

func (j *JPEG) Encode(ctx context.Context, s *core.Surface, opts core.EncodeOptions) ([]byte, error) {
	const op = "jpeg.encode"
	if err := checkSurface(ctx, op, s); err != nil {
		return nil, err
	}

	quality := utils.ClampQuality(opts.Quality, j.DefaultQuality)

	buf := utils.AcquireBuffer()
	defer utils.ReleaseBuffer(buf)
	if err := jpeg.Encode(buf, s.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op,
			fmt.Errorf("%w: %v", apperrors.ErrEncodeFailure, err))
	}
	if opts.DPI <= 0 {
		return utils.CloneBytes(buf.Bytes()), nil
	}
	return withJFIF(buf.Bytes(), opts.DPI), nil
}

// withJFIF returns a copy of data with a JFIF APP0 segment carrying dpi
// right after SOI.  The standard library encoder writes none.
func withJFIF(data []byte, dpi int) []byte {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return utils.CloneBytes(data)
	}
	d := uint16(min(dpi, 0xFFFF))
	app0 := []byte{
		0xFF, 0xE0, 0x00, 0x10, // marker, length 16
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01, // version 1.1
		0x01,       // units: dots per inch
		0, 0, 0, 0, // x/y density
		0x00, 0x00, // no embedded thumbnail
	}
	binary.BigEndian.PutUint16(app0[12:], d)
	binary.BigEndian.PutUint16(app0[14:], d)

	out := make([]byte, 0, len(data)+len(app0))
	out = append(out, data[:2]...)
	out = append(out, app0...)
	return append(out, data[2:]...)
}

var _ core.Encoder = (*JPEG)(nil)
