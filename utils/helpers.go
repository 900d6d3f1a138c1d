package utils

import (
	"bytes"

	"github.com/h2non/filetype"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatGIF     = "gif"
	formatBMP     = "bmp"
	formatTIFF    = "tiff"
	formatWebP    = "webp"
	formatUnknown = "unknown"
)

type signature struct {
	format string
	offset int
	magic  []byte
}

// Checked in priority order.  WebP additionally needs "WEBP" at offset 8.
var signatures = []signature{
	{formatJPEG, 0, []byte{0xFF, 0xD8, 0xFF}},
	{formatPNG, 0, []byte{0x89, 0x50, 0x4E, 0x47}},
	{formatGIF, 0, []byte{0x47, 0x49, 0x46, 0x38}},
	{formatBMP, 0, []byte{0x42, 0x4D}},
	{formatTIFF, 0, []byte{0x49, 0x49, 0x2A, 0x00}},
	{formatTIFF, 0, []byte{0x4D, 0x4D, 0x00, 0x2A}},
}

var (
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// DetectFormat sniffs the leading bytes of data and returns the image format.
// The result is a guess for diagnostics and temp-file naming only.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	for _, s := range signatures {
		if hasMagic(data, s.offset, s.magic) {
			return s.format
		}
	}
	if len(data) >= 12 && hasMagic(data, 0, riffMagic) && hasMagic(data, 8, webpMagic) {
		return formatWebP
	}
	return formatUnknown
}

func hasMagic(data []byte, offset int, magic []byte) bool {
	end := offset + len(magic)
	return len(data) >= end && bytes.Equal(data[offset:end], magic)
}

// Describe returns a MIME type guess for log enrichment, or "" when the
// buffer is not recognised.
func Describe(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ClampQuality bounds q to [1, 100]; q <= 0 selects def.
func ClampQuality(q, def int) int {
	if q <= 0 {
		q = def
	}
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
