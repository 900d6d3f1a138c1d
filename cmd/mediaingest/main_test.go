package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	mediaingest "github.com/Skryldev/media-ingest"
	"github.com/Skryldev/media-ingest/config"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "upload.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseFlags(t *testing.T) {
	f, files, err := parseFlags([]string{"-f", "JPEG", "-q", "70", "--max-width", "1200", "a.png", "b.jpg"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.format != "JPEG" || f.quality != 70 || f.maxWidth != 1200 || f.outDir != "." || f.backend != "go" {
		t.Errorf("flags: %+v", f)
	}
	if len(files) != 2 || files[1] != "b.jpg" {
		t.Errorf("files: %v", files)
	}

	if _, _, err := parseFlags(nil); err == nil {
		t.Error("no files accepted")
	}
	if f, _, err := parseFlags([]string{"--backend", "vips", "a.png"}); err != nil || f.backend != "vips" {
		t.Errorf("vips backend: %+v, %v", f, err)
	}
	if _, _, err := parseFlags([]string{"--backend", "magick", "a.png"}); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, 160, 100)

	cfg := config.Default()
	proc, shutdown, err := newProcessor("go", cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer shutdown()

	r := run(context.Background(), proc, cfg, flags{outDir: dir}, mediaingest.ProcessOptions{}, path)
	if r.Error != "" {
		t.Fatalf("run: %s (%s)", r.Error, r.Category)
	}
	if r.Output == nil || r.Output.Width != 1440 || r.Output.Height != 900 {
		t.Fatalf("output: %+v", r.Output)
	}
	for _, name := range []string{"upload.webp", "upload.thumb.webp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	meta := run(context.Background(), proc, cfg, flags{outDir: dir, metadata: true}, mediaingest.ProcessOptions{}, path)
	if meta.Metadata == nil || meta.Metadata.Width != 160 || meta.Output != nil {
		t.Errorf("metadata report: %+v", meta)
	}

	missing := run(context.Background(), proc, cfg, flags{outDir: dir}, mediaingest.ProcessOptions{}, filepath.Join(dir, "nope.png"))
	if missing.Error == "" {
		t.Error("missing file succeeded")
	}
}
