package utils

import (
	"bytes"
	"context"
	"io"
	"sync"

	apperrors "github.com/Skryldev/media-ingest/errors"
)

// bufPool reuses byte buffers to reduce GC pressure.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	// Cap large buffers to avoid pinning excessive memory.
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// DrainReader reads all bytes from r into a pooled buffer, checking ctx
// between chunks.  Pass the buffer back with ReleaseBuffer.
func DrainReader(ctx context.Context, r io.Reader, chunkSize int) (*bytes.Buffer, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := AcquireBuffer()
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
	}
	return buf, nil
}

// ReadLimited reads r into an owned slice.  At most max+1 bytes are read so an
// oversized stream is detected without buffering all of it.
func ReadLimited(ctx context.Context, r io.Reader, max int64) ([]byte, error) {
	const op = "read"
	if r == nil {
		return nil, apperrors.New(apperrors.CategoryInput, op, apperrors.ErrEmptyInput)
	}
	src := r
	if max > 0 {
		src = io.LimitReader(r, max+1)
	}
	buf, err := DrainReader(ctx, src, 0)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, op, err)
	}
	defer ReleaseBuffer(buf)

	if max > 0 && int64(buf.Len()) > max {
		// Size reports what was seen; the true length may be larger.
		return nil, apperrors.New(apperrors.CategorySizeLimit, op,
			&apperrors.SizeLimitError{Size: int64(buf.Len()), Limit: max})
	}
	return CloneBytes(buf.Bytes()), nil
}
