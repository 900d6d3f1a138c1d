package mediaingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Skryldev/media-ingest/config"
	"github.com/Skryldev/media-ingest/core"
)

// ImageHandler accepts still images by extension or content type.
type ImageHandler struct {
	proc         *core.Processor
	extensions   map[string]struct{}
	contentTypes map[string]struct{}
}

// NewImageHandler builds the lookup sets once; they are read-only afterwards.
func NewImageHandler(proc *core.Processor, mt config.MediaTypes) *ImageHandler {
	h := &ImageHandler{
		proc:         proc,
		extensions:   make(map[string]struct{}, len(mt.Extensions)),
		contentTypes: make(map[string]struct{}, len(mt.ContentTypes)),
	}
	for _, e := range mt.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		h.extensions[e] = struct{}{}
	}
	for _, ct := range mt.ContentTypes {
		h.contentTypes[normalizeContentType(ct)] = struct{}{}
	}
	return h
}

func (h *ImageHandler) Name() string { return "image" }

func (h *ImageHandler) CanHandle(filename, contentType string) bool {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if _, ok := h.extensions[ext]; ok {
			return true
		}
	}
	_, ok := h.contentTypes[normalizeContentType(contentType)]
	return ok
}

func (h *ImageHandler) Process(ctx context.Context, in core.RawInput, opts core.ProcessOptions) (*core.ProcessingResult, error) {
	return h.proc.Process(ctx, in, opts)
}

func (h *ImageHandler) Metadata(ctx context.Context, in core.RawInput) (*core.MediaMetadata, error) {
	return h.proc.Metadata(ctx, in)
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

var _ core.Handler = (*ImageHandler)(nil)
