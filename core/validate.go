package core

import (
	"path/filepath"
	"strings"

	"github.com/Skryldev/media-ingest/config"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/utils"
)

// ValidatePreDecode rejects input that must never reach a decoder: nothing
// to read, or more bytes than the policy allows.
func ValidatePreDecode(in RawInput, p config.SecurityPolicy) error {
	const op = "validate.pre"
	if len(in.Data) == 0 {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	if size := int64(len(in.Data)); size > p.MaxFileSizeBytes {
		return apperrors.New(apperrors.CategorySizeLimit, op,
			&apperrors.SizeLimitError{Size: size, Limit: p.MaxFileSizeBytes})
	}
	return nil
}

// ValidatePostDecode rejects surfaces that are degenerate or larger than the
// policy allows.  Oversized surfaces are never resized to fit.
func ValidatePostDecode(s *Surface, p config.SecurityPolicy) error {
	const op = "validate.post"
	if s.Empty() {
		return apperrors.New(apperrors.CategoryInput, op, apperrors.ErrInvalidDimensions)
	}
	if s.Width > p.MaxWidth || s.Height > p.MaxHeight {
		return apperrors.New(apperrors.CategoryDimensionLimit, op, &apperrors.DimensionLimitError{
			Width: s.Width, Height: s.Height,
			MaxWidth: p.MaxWidth, MaxHeight: p.MaxHeight,
			Source: "decoded",
		})
	}
	return nil
}

// SniffFormat classifies data by its magic bytes.
func SniffFormat(data []byte) Format {
	return Format(utils.DetectFormat(data))
}

// GuessFormat layers the sniffed format over the filename extension, falling
// back to JPEG.  The guess only names temp files, gates header repair and
// enriches logs.
func GuessFormat(data []byte, filename string) Format {
	if f := SniffFormat(data); f != FormatUnknown {
		return f
	}
	if f := FormatFromFilename(filename); f != FormatUnknown {
		return f
	}
	return FormatJPEG
}

// FormatFromFilename maps a file extension to a Format.
func FormatFromFilename(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".jpe", ".jfif":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".gif":
		return FormatGIF
	case ".bmp":
		return FormatBMP
	case ".tif", ".tiff":
		return FormatTIFF
	case ".webp":
		return FormatWebP
	}
	return FormatUnknown
}

// FormatFromContentType maps MIME types to Format values.
func FormatFromContentType(ct string) Format {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/gif":
		return FormatGIF
	case "image/bmp", "image/x-ms-bmp":
		return FormatBMP
	case "image/tiff":
		return FormatTIFF
	case "image/webp":
		return FormatWebP
	}
	return FormatUnknown
}

// Extension returns the canonical file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatGIF:
		return ".gif"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	case FormatWebP:
		return ".webp"
	}
	return ".bin"
}

// MIME returns the content type for f.
func (f Format) MIME() string {
	if f == FormatUnknown || f == "" {
		return "application/octet-stream"
	}
	return "image/" + string(f)
}
