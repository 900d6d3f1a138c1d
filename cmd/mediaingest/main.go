// Command mediaingest runs uploads from disk through the ingestion pipeline
// and writes the artifacts next to a JSON report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"

	mediaingest "github.com/Skryldev/media-ingest"
	"github.com/Skryldev/media-ingest/adapters/vips"
	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
	apperrors "github.com/Skryldev/media-ingest/errors"
	"github.com/Skryldev/media-ingest/hooks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type flags struct {
	configPath string
	envFile    string
	outDir     string
	format     string
	quality    int
	maxWidth   int
	maxHeight  int
	logger     string
	backend    string
	metadata   bool
}

func parseFlags(args []string) (flags, []string, error) {
	var f flags
	fs := pflag.NewFlagSet("mediaingest", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (yaml, json or toml)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file with MEDIAINGEST_* overrides")
	fs.StringVarP(&f.outDir, "out", "o", ".", "output directory")
	fs.StringVarP(&f.format, "format", "f", "", "output format override: webp or jpeg")
	fs.IntVarP(&f.quality, "quality", "q", 0, "output quality override (1-100)")
	fs.IntVar(&f.maxWidth, "max-width", 0, "tighter delivery ceiling width")
	fs.IntVar(&f.maxHeight, "max-height", 0, "tighter delivery ceiling height")
	fs.StringVar(&f.logger, "logger", "slog", "log backend: slog or zap")
	fs.StringVar(&f.backend, "backend", "go", "image backend: go or vips (needs libvips)")
	fs.BoolVar(&f.metadata, "metadata", false, "print header metadata only")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	if f.backend != "go" && f.backend != "vips" {
		return f, nil, fmt.Errorf("unknown backend %q", f.backend)
	}
	if fs.NArg() == 0 {
		return f, nil, fmt.Errorf("usage: mediaingest [flags] FILE...")
	}
	return f, fs.Args(), nil
}

func loadEnv(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Error("Error loading env file", "path", path, "error", err)
		os.Exit(1)
	}
}

func newLogger(backend string, cfg config.Config) core.Logger {
	if backend == "zap" {
		return hooks.NewZapProduction(hooks.ZapConfig{Level: cfg.LogLevel, File: cfg.LogFile})
	}
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return hooks.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

type artifact struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
}

type report struct {
	File         string                     `json:"file"`
	ID           string                     `json:"id,omitempty"`
	SourceFormat string                     `json:"source_format,omitempty"`
	DecodedBy    string                     `json:"decoded_by,omitempty"`
	SourceWidth  int                        `json:"source_width,omitempty"`
	SourceHeight int                        `json:"source_height,omitempty"`
	Output       *artifact                  `json:"output,omitempty"`
	Thumbnail    *artifact                  `json:"thumbnail,omitempty"`
	DurationMs   int64                      `json:"duration_ms,omitempty"`
	Metadata     *mediaingest.MediaMetadata `json:"metadata,omitempty"`
	Error        string                     `json:"error,omitempty"`
	Category     string                     `json:"category,omitempty"`
}

func main() {
	f, files, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	loadEnv(f.envFile)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(f.logger, cfg)
	if zl, ok := logger.(*hooks.ZapLogger); ok {
		defer func() { _ = zl.Sync() }()
	}

	metrics := hooks.NewInMemoryMetrics()
	proc, shutdown, err := newProcessor(f.backend, cfg,
		mediaingest.WithLogger(logger),
		mediaingest.WithMetrics(metrics),
		mediaingest.WithHook(hooks.NewLoggingHook(logger)),
		mediaingest.WithStepHook(hooks.NewMetricsHook(metrics)),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := mediaingest.ProcessOptions{
		Format:    core.Format(strings.ToLower(f.format)),
		Quality:   f.quality,
		MaxWidth:  f.maxWidth,
		MaxHeight: f.maxHeight,
	}

	failed := false
	reports := make([]report, 0, len(files))
	for _, path := range files {
		r := run(ctx, proc, cfg, f, opts, path)
		if r.Error != "" {
			failed = true
		}
		reports = append(reports, r)
	}

	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	processed, errs := proc.Stats()
	logger.Info("mediaingest.summary", "processed", processed, "errors", errs,
		"bytes_in", metrics.Snapshot().TotalThroughputB)
	if failed {
		shutdown()
		os.Exit(1)
	}
}

// newProcessor builds the pipeline.  The vips backend joins the decode chain
// and replaces both encoders; the returned func releases libvips.
func newProcessor(backend string, cfg config.Config, opts ...mediaingest.Option) (*mediaingest.Processor, func(), error) {
	if backend != "vips" {
		proc, err := mediaingest.New(cfg, opts...)
		return proc, func() {}, err
	}

	vb := vips.NewBackend(vips.BackendConfig{})
	proc, err := mediaingest.New(cfg, append(opts, mediaingest.WithDecodeStrategy(vb))...)
	if err != nil {
		vb.Shutdown()
		return nil, nil, err
	}
	vips.RegisterVipsBackend(proc.Registry(), vb, cfg.Output.Quality, cfg.Output.JPEGQuality)
	return proc, vb.Shutdown, nil
}

func run(ctx context.Context, proc *mediaingest.Processor, cfg config.Config, f flags, opts mediaingest.ProcessOptions, path string) report {
	r := report{File: path}
	fail := func(err error) report {
		r.Error = err.Error()
		r.Category = string(apperrors.CategoryOf(err))
		return r
	}

	file, err := os.Open(path)
	if err != nil {
		return fail(err)
	}
	in, err := mediaingest.FromReader(ctx, file, filepath.Base(path), "", cfg.Policy.MaxFileSizeBytes)
	_ = file.Close()
	if err != nil {
		return fail(err)
	}

	if f.metadata {
		md, err := proc.Metadata(ctx, in)
		if err != nil {
			return fail(err)
		}
		r.Metadata = md
		return r
	}

	res, err := proc.Dispatch(ctx, in, opts)
	if err != nil {
		return fail(err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	mainPath := filepath.Join(f.outDir, base+res.Primary.Format.Extension())
	thumbPath := filepath.Join(f.outDir, base+".thumb"+res.Thumbnail.Format.Extension())
	if err := os.WriteFile(mainPath, res.Primary.Data, 0o644); err != nil {
		return fail(err)
	}
	if err := os.WriteFile(thumbPath, res.Thumbnail.Data, 0o644); err != nil {
		return fail(err)
	}

	r.ID = res.ID
	r.SourceFormat = string(res.SourceFormat)
	r.DecodedBy = res.DecodedBy
	r.SourceWidth, r.SourceHeight = res.SourceWidth, res.SourceHeight
	r.Output = &artifact{Path: mainPath, Format: string(res.Primary.Format),
		Width: res.Primary.Width, Height: res.Primary.Height, Bytes: res.Primary.SizeBytes}
	r.Thumbnail = &artifact{Path: thumbPath, Format: string(res.Thumbnail.Format),
		Width: res.Thumbnail.Width, Height: res.Thumbnail.Height, Bytes: res.Thumbnail.SizeBytes}
	r.DurationMs = res.ProcessingTime.Milliseconds()
	return r
}
