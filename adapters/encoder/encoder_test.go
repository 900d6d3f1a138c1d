package encoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/chai2010/webp"

	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
)

func newSurface(w, h int) *core.Surface {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	return core.NewSurface(img, core.FormatPNG)
}

func TestWebP_Encode(t *testing.T) {
	enc := NewWebP(0)
	if enc.DefaultQuality != DefaultWebPQuality {
		t.Errorf("default quality: %d", enc.DefaultQuality)
	}
	if !enc.CanEncode(core.FormatWebP) || enc.CanEncode(core.FormatJPEG) {
		t.Error("CanEncode")
	}

	data, err := enc.Encode(context.Background(), newSurface(64, 40), core.EncodeOptions{Quality: 80})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) < 12 || string(data[:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Fatalf("not a WebP container: % x", data[:min(12, len(data))])
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 40 {
		t.Errorf("dims: %dx%d", cfg.Width, cfg.Height)
	}
}

func TestWebP_QualityAffectsSize(t *testing.T) {
	enc := NewWebP(85)
	s := newSurface(128, 128)
	lo, err := enc.Encode(context.Background(), s, core.EncodeOptions{Quality: 10})
	if err != nil {
		t.Fatal(err)
	}
	hi, err := enc.Encode(context.Background(), s, core.EncodeOptions{Quality: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(lo) >= len(hi) {
		t.Errorf("quality 10 (%d bytes) not smaller than quality 100 (%d bytes)", len(lo), len(hi))
	}
}

func TestJPEG_EncodeWithDensity(t *testing.T) {
	enc := NewJPEG(0)
	if enc.DefaultQuality != DefaultJPEGQuality {
		t.Errorf("default quality: %d", enc.DefaultQuality)
	}

	data, err := enc.Encode(context.Background(), newSurface(32, 24), core.EncodeOptions{DPI: 96})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if data[0] != 0xFF || data[1] != 0xD8 || data[2] != 0xFF || data[3] != 0xE0 {
		t.Fatalf("APP0 not after SOI: % x", data[:4])
	}
	if string(data[6:11]) != "JFIF\x00" {
		t.Errorf("JFIF identifier: %q", data[6:11])
	}
	if data[13] != 1 {
		t.Errorf("density units: %d", data[13])
	}
	if x, y := binary.BigEndian.Uint16(data[14:]), binary.BigEndian.Uint16(data[16:]); x != 96 || y != 96 {
		t.Errorf("density: %dx%d", x, y)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("dims: %v", b)
	}
}

func TestJPEG_NoDensityWithoutDPI(t *testing.T) {
	data, err := NewJPEG(90).Encode(context.Background(), newSurface(8, 8), core.EncodeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if data[3] == 0xE0 {
		t.Error("unexpected APP0 segment")
	}
}

func TestEncoders_RejectEmptySurface(t *testing.T) {
	encoders := map[string]core.Encoder{"webp": NewWebP(85), "jpeg": NewJPEG(90)}
	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			empty := core.NewSurface(image.NewRGBA(image.Rect(0, 0, 0, 0)), core.FormatPNG)
			_, err := enc.Encode(context.Background(), empty, core.EncodeOptions{})
			if !apperrors.IsCategory(err, apperrors.CategoryEncode) || !errors.Is(err, apperrors.ErrEncodeFailure) {
				t.Errorf("got %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if _, err := enc.Encode(ctx, newSurface(4, 4), core.EncodeOptions{}); !errors.Is(err, context.Canceled) {
				t.Errorf("cancelled: got %v", err)
			}
		})
	}
}

func TestWithJFIF_LeavesNonJPEGAlone(t *testing.T) {
	in := []byte{1, 2, 3}
	if out := withJFIF(in, 72); !bytes.Equal(out, in) {
		t.Errorf("got % x", out)
	}
}
