package mediaingest_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/chai2010/webp"

	mediaingest "github.com/Skryldev/media-ingest"
	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/hooks"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func fill(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			row[x*4+0] = uint8(x)
			row[x*4+1] = uint8(y)
			row[x*4+2] = 160
			row[x*4+3] = 255
		}
	}
	return img
}

func newJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fill(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func newPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, fill(w, h)); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

// withOrientation splices an Exif APP1 segment carrying o after SOI.
func withOrientation(data []byte, o uint16) []byte {
	body := []byte("Exif\x00\x00MM\x00\x2A\x00\x00\x00\x08\x00\x01")
	entry := make([]byte, 12)
	binary.BigEndian.PutUint16(entry[0:], 0x0112)
	binary.BigEndian.PutUint16(entry[2:], 3)
	binary.BigEndian.PutUint32(entry[4:], 1)
	binary.BigEndian.PutUint16(entry[8:], o)
	body = append(body, entry...)
	body = append(body, 0, 0, 0, 0)

	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(body)+2))
	out := append([]byte(nil), data[:2]...)
	out = append(out, seg...)
	out = append(out, body...)
	return append(out, data[2:]...)
}

func newProc(t *testing.T, opts ...mediaingest.Option) *mediaingest.Processor {
	t.Helper()
	cfg := mediaingest.DefaultConfig()
	cfg.TempDir = t.TempDir()
	p, err := mediaingest.New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func webpSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not WebP: %v", err)
	}
	return cfg.Width, cfg.Height
}

// ── End-to-end ────────────────────────────────────────────────────────────────

func TestProcess_DownscaleLargeJPEG(t *testing.T) {
	proc := newProc(t)
	res, err := proc.Process(context.Background(), mediaingest.FromBytes(newJPEG(t, 3000, 2000), "big.jpg"), mediaingest.ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Primary.Width != 2500 || res.Primary.Height != 1667 {
		t.Errorf("primary: %dx%d, want 2500x1667", res.Primary.Width, res.Primary.Height)
	}
	if w, h := webpSize(t, res.Primary.Data); w != 2500 || h != 1667 {
		t.Errorf("encoded primary: %dx%d", w, h)
	}
	if res.Thumbnail.Width != 400 || res.Thumbnail.Height != 267 {
		t.Errorf("thumbnail: %dx%d, want 400x267", res.Thumbnail.Width, res.Thumbnail.Height)
	}
	if w, h := webpSize(t, res.Thumbnail.Data); w != 400 || h != 267 {
		t.Errorf("encoded thumbnail: %dx%d", w, h)
	}
	if res.SourceFormat != core.FormatJPEG || res.DecodedBy != "direct" {
		t.Errorf("source: %s via %s", res.SourceFormat, res.DecodedBy)
	}
	if res.Primary.Quality != 85 || res.Primary.DPI != 96 {
		t.Errorf("primary quality/dpi: %d/%d", res.Primary.Quality, res.Primary.DPI)
	}
}

func TestProcess_UpscaleSmallPNG(t *testing.T) {
	proc := newProc(t)
	res, err := proc.Process(context.Background(), mediaingest.FromBytes(newPNG(t, 100, 100), "tiny.png"), mediaingest.ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Primary.Width != 1440 || res.Primary.Height != 1440 {
		t.Errorf("primary: %dx%d, want 1440x1440", res.Primary.Width, res.Primary.Height)
	}
	if res.Thumbnail.Width != 400 || res.Thumbnail.Height != 400 {
		t.Errorf("thumbnail: %dx%d", res.Thumbnail.Width, res.Thumbnail.Height)
	}
	if res.Primary.Format != mediaingest.WebP {
		t.Errorf("format: %s", res.Primary.Format)
	}
}

func TestProcess_ExtremeStripThumbnailBounded(t *testing.T) {
	proc := newProc(t)
	res, err := proc.Process(context.Background(), mediaingest.FromBytes(newPNG(t, 3000, 6), "strip.png"), mediaingest.ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Primary.Width != 2500 || res.Primary.Height != 5 {
		t.Fatalf("primary: %dx%d, want 2500x5", res.Primary.Width, res.Primary.Height)
	}
	if res.Thumbnail.Width > res.Primary.Width || res.Thumbnail.Height > res.Primary.Height {
		t.Errorf("thumbnail %dx%d larger than its source", res.Thumbnail.Width, res.Thumbnail.Height)
	}
	if w, h := webpSize(t, res.Thumbnail.Data); w != res.Thumbnail.Width || h != res.Thumbnail.Height {
		t.Errorf("encoded thumbnail: %dx%d", w, h)
	}
}

func TestProcess_AppliesEXIFOrientation(t *testing.T) {
	proc := newProc(t)
	raw := withOrientation(newJPEG(t, 300, 200), 6)
	res, err := proc.Process(context.Background(), mediaingest.FromBytes(raw, "phone.jpg"), mediaingest.ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// Rotated to 200x300, then the portrait floor scales by 4.8.
	if res.Primary.Width != 960 || res.Primary.Height != 1440 {
		t.Errorf("primary: %dx%d, want 960x1440", res.Primary.Width, res.Primary.Height)
	}
}

func TestProcess_RecoversCorruptedSOI(t *testing.T) {
	proc := newProc(t)
	raw := newJPEG(t, 1600, 1000)
	raw[0] = 0x00

	res, err := proc.Process(context.Background(), mediaingest.FromBytes(raw, ""), mediaingest.ProcessOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.DecodedBy != "header-repair" {
		t.Errorf("decoded by %s", res.DecodedBy)
	}
	if res.Primary.Width != 1600 || res.Primary.Height != 1000 {
		t.Errorf("primary: %dx%d", res.Primary.Width, res.Primary.Height)
	}
}

func TestProcess_Deterministic(t *testing.T) {
	proc := newProc(t)
	raw := newJPEG(t, 800, 600)
	a, err := proc.Process(context.Background(), mediaingest.FromBytes(raw, "a.jpg"), mediaingest.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := proc.Process(context.Background(), mediaingest.FromBytes(raw, "a.jpg"), mediaingest.ProcessOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Primary.Data, b.Primary.Data) || !bytes.Equal(a.Thumbnail.Data, b.Thumbnail.Data) {
		t.Error("identical inputs produced different artifacts")
	}
	if a.ID == b.ID {
		t.Error("requests share an ID")
	}
}

func TestProcess_JPEGOverride(t *testing.T) {
	proc := newProc(t)
	res, err := proc.Process(context.Background(), mediaingest.FromBytes(newPNG(t, 1600, 1000), "x.png"),
		mediaingest.ProcessOptions{Format: mediaingest.JPEG, Quality: 70, MaxWidth: 1200})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Primary.Format != mediaingest.JPEG || res.Primary.Quality != 70 {
		t.Errorf("primary: %s q%d", res.Primary.Format, res.Primary.Quality)
	}
	if res.Primary.Width != 1200 || res.Primary.Height != 750 {
		t.Errorf("primary: %dx%d", res.Primary.Width, res.Primary.Height)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Primary.Data))
	if err != nil || cfg.Width != 1200 {
		t.Errorf("encoded jpeg: %v %+v", err, cfg)
	}
	if res.Thumbnail.Format != mediaingest.WebP {
		t.Errorf("thumbnail must stay WebP: %s", res.Thumbnail.Format)
	}
}

func TestProcess_Rejections(t *testing.T) {
	cfg := mediaingest.DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.Policy.MaxFileSizeBytes = 64 * 1024
	cfg.Policy.MaxWidth, cfg.Policy.MaxHeight = 4000, 4000
	proc, err := mediaingest.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		data []byte
		want apperrors.Category
	}{
		{"empty", nil, apperrors.CategoryInput},
		{"too many bytes", make([]byte, 64*1024+1), apperrors.CategorySizeLimit},
		{"not an image", []byte(strings.Repeat("lorem ipsum ", 20)), apperrors.CategoryCorruptImage},
		{"too wide", newPNG(t, 4001, 2), apperrors.CategoryDimensionLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := proc.Process(context.Background(), mediaingest.FromBytes(tt.data, ""), mediaingest.ProcessOptions{})
			if got := apperrors.CategoryOf(err); got != tt.want {
				t.Errorf("category: got %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}

	processed, errs := proc.Stats()
	if processed != 0 || errs != int64(len(tests)) {
		t.Errorf("stats: %d processed, %d errors", processed, errs)
	}
}

func TestBatch_Concurrent(t *testing.T) {
	metrics := hooks.NewInMemoryMetrics()
	proc := newProc(t, mediaingest.WithMetrics(metrics), mediaingest.WithStepHook(hooks.NewMetricsHook(metrics)))

	inputs := make([]mediaingest.RawInput, 8)
	for i := range inputs {
		inputs[i] = mediaingest.FromBytes(newJPEG(t, 200+i*50, 150), "")
	}
	inputs[3] = mediaingest.FromBytes([]byte("broken"), "broken.jpg")

	results, errs := proc.Batch(context.Background(), inputs, mediaingest.ProcessOptions{})
	for i := range inputs {
		if i == 3 {
			if !apperrors.IsCategory(errs[i], apperrors.CategoryCorruptImage) {
				t.Errorf("input 3: got %v", errs[i])
			}
			continue
		}
		if errs[i] != nil {
			t.Errorf("input %d: %v", i, errs[i])
			continue
		}
		if results[i].SourceWidth != 200+i*50 {
			t.Errorf("input %d: results out of order (source width %d)", i, results[i].SourceWidth)
		}
	}

	snap := metrics.Snapshot()
	if snap.StepCalls["total"] != 7 {
		t.Errorf("total observations: %d", snap.StepCalls["total"])
	}
	if snap.StepCalls["normalize.resize"] != 7 {
		t.Errorf("resize observations: %d", snap.StepCalls["normalize.resize"])
	}
	if snap.DecodeOK["direct"] != 7 || snap.DecodeFailed["direct"] != 1 {
		t.Errorf("decode attempts: ok=%v failed=%v", snap.DecodeOK, snap.DecodeFailed)
	}
	if snap.ErrorCategories["corrupt_image"] != 1 {
		t.Errorf("error categories: %v", snap.ErrorCategories)
	}
}

func TestMetadata(t *testing.T) {
	proc := newProc(t)
	raw := withOrientation(newJPEG(t, 640, 480), 8)
	md, err := proc.Metadata(context.Background(), mediaingest.FromBytes(raw, "m.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if md.Width != 640 || md.Height != 480 || md.Format != core.FormatJPEG || md.Orientation != 8 {
		t.Errorf("metadata: %+v", md)
	}
}

// ── Dispatch ──────────────────────────────────────────────────────────────────

func TestDispatch(t *testing.T) {
	proc := newProc(t)
	ctx := context.Background()
	raw := newPNG(t, 50, 50)

	if got := proc.Handlers(); len(got) != 1 || got[0] != "image" {
		t.Errorf("handlers: %v", got)
	}

	if _, err := proc.Dispatch(ctx, mediaingest.RawInput{Data: raw, Filename: "photo.PNG"}, mediaingest.ProcessOptions{}); err != nil {
		t.Errorf("by extension: %v", err)
	}
	if _, err := proc.Dispatch(ctx, mediaingest.RawInput{Data: raw, ContentType: "image/png; charset=binary"}, mediaingest.ProcessOptions{}); err != nil {
		t.Errorf("by content type: %v", err)
	}
	if _, err := proc.Dispatch(ctx, mediaingest.RawInput{Data: raw}, mediaingest.ProcessOptions{}); err != nil {
		t.Errorf("by sniffing: %v", err)
	}

	_, err := proc.Dispatch(ctx, mediaingest.RawInput{Data: raw, Filename: "clip.mp4", ContentType: "video/mp4"}, mediaingest.ProcessOptions{})
	if !errors.Is(err, apperrors.ErrUnsupportedMedia) || !apperrors.IsCategory(err, apperrors.CategoryInput) {
		t.Errorf("video: got %v", err)
	}
}

type docHandler struct{ calls int }

func (d *docHandler) Name() string { return "document" }
func (d *docHandler) CanHandle(filename, _ string) bool {
	return strings.HasSuffix(filename, ".pdf")
}
func (d *docHandler) Process(context.Context, core.RawInput, core.ProcessOptions) (*core.ProcessingResult, error) {
	d.calls++
	return &core.ProcessingResult{ID: "doc"}, nil
}
func (d *docHandler) Metadata(context.Context, core.RawInput) (*core.MediaMetadata, error) {
	return nil, nil
}

func TestRegisterHandler(t *testing.T) {
	proc := newProc(t)
	doc := &docHandler{}
	proc.RegisterHandler(doc)

	res, err := proc.Dispatch(context.Background(), mediaingest.RawInput{Data: []byte("%PDF-1.7"), Filename: "a.pdf"}, mediaingest.ProcessOptions{})
	if err != nil || res.ID != "doc" || doc.calls != 1 {
		t.Errorf("document dispatch: %v %+v", err, res)
	}
	if got := proc.Handlers(); len(got) != 2 || got[0] != "image" {
		t.Errorf("handlers: %v", got)
	}
}

// ── Construction and input ────────────────────────────────────────────────────

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Format = "avif"
	_, err := mediaingest.New(cfg)
	if !apperrors.IsCategory(err, apperrors.CategoryConfig) {
		t.Errorf("got %v", err)
	}
}

func TestFromReader(t *testing.T) {
	ctx := context.Background()
	in, err := mediaingest.FromReader(ctx, bytes.NewReader([]byte("abc")), "a.jpg", "image/jpeg", 3)
	if err != nil {
		t.Fatal(err)
	}
	if string(in.Data) != "abc" || in.Filename != "a.jpg" || in.ContentType != "image/jpeg" {
		t.Errorf("input: %+v", in)
	}

	_, err = mediaingest.FromReader(ctx, bytes.NewReader([]byte("abcd")), "", "", 3)
	var sle *apperrors.SizeLimitError
	if !errors.As(err, &sle) || sle.Limit != 3 {
		t.Errorf("got %v", err)
	}
}

func TestWithDecodeStrategy(t *testing.T) {
	proc := newProc(t, mediaingest.WithDecodeStrategy(rejectAll{}))
	raw := []byte("definitely not pixels")
	_, err := proc.Process(context.Background(), mediaingest.FromBytes(raw, ""), mediaingest.ProcessOptions{})
	var cie *apperrors.CorruptImageError
	if !errors.As(err, &cie) {
		t.Fatalf("got %v", err)
	}
	var names []string
	for _, a := range cie.Attempts {
		names = append(names, a.Strategy)
	}
	if got := strings.Join(names, ","); got != "direct,bounded,bytecopy,tempfile,reject-all,header-repair" {
		t.Errorf("attempt order: %s", got)
	}
}

type rejectAll struct{}

func (rejectAll) Name() string { return "reject-all" }
func (rejectAll) Decode(context.Context, []byte, core.Format) (image.Image, error) {
	return nil, errors.New("rejected")
}
