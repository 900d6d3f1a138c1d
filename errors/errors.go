package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryInput          Category = "input"
	CategorySizeLimit      Category = "size_limit"
	CategoryCorruptImage   Category = "corrupt_image"
	CategoryDimensionLimit Category = "dimension_limit"
	CategoryTimeout        Category = "timeout"
	CategoryEncode         Category = "encode"
	CategoryPipeline       Category = "pipeline"
	CategoryConfig         Category = "config"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  An error that already carries a
// category keeps it; only the operation chain grows.  Wrapping a
// ProcessingError under its own op returns it unchanged.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		if pe.Op == op {
			return err
		}
		return New(pe.Category, op, err)
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	return CategoryOf(err) == cat
}

// CategoryOf returns the category of the outermost ProcessingError in err's
// chain, or "" when there is none.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// Sentinel errors for common failure modes.
var (
	ErrEmptyInput             = errors.New("empty input")
	ErrUnsupportedMedia       = errors.New("unsupported media")
	ErrUnsupportedFormat      = errors.New("unsupported image format")
	ErrInvalidDimensions      = errors.New("invalid dimensions")
	ErrSizeLimitExceeded      = errors.New("size limit exceeded")
	ErrCorruptImage           = errors.New("corrupt image")
	ErrDimensionLimitExceeded = errors.New("dimension limit exceeded")
	ErrProcessingTimeout      = errors.New("processing timeout")
	ErrEncodeFailure          = errors.New("encode failure")
)

// SizeLimitError reports raw input larger than the configured byte limit.
type SizeLimitError struct {
	Size  int64
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("input is %d bytes, limit is %d bytes", e.Size, e.Limit)
}

func (e *SizeLimitError) Unwrap() error { return ErrSizeLimitExceeded }

// DimensionLimitError reports a decoded (or header-declared) image that exceeds
// the configured pixel limits.
type DimensionLimitError struct {
	Width, Height       int
	MaxWidth, MaxHeight int
	// MaxPixels is set when the pixel budget, not an axis, was exceeded.
	MaxPixels int64
	// Source is "decoded" or "header".
	Source string
}

func (e *DimensionLimitError) Error() string {
	if e.MaxPixels > 0 {
		return fmt.Sprintf("%s dimensions %dx%d exceed pixel budget %d",
			e.Source, e.Width, e.Height, e.MaxPixels)
	}
	return fmt.Sprintf("%s dimensions %dx%d exceed limit %dx%d",
		e.Source, e.Width, e.Height, e.MaxWidth, e.MaxHeight)
}

func (e *DimensionLimitError) Unwrap() error { return ErrDimensionLimitExceeded }

// DecodeAttempt is one entry of the decode fallback log.
type DecodeAttempt struct {
	Strategy string
	Reason   string
}

// AttemptLog is the ordered list of failed decode strategies.
type AttemptLog []DecodeAttempt

// Append returns a new log with a failure added.
func (l AttemptLog) Append(strategy string, err error) AttemptLog {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	out := make(AttemptLog, len(l), len(l)+1)
	copy(out, l)
	return append(out, DecodeAttempt{Strategy: strategy, Reason: reason})
}

func (l AttemptLog) String() string {
	parts := make([]string, len(l))
	for i, a := range l {
		parts[i] = a.Strategy + ": " + a.Reason
	}
	return strings.Join(parts, "; ")
}

// CorruptImageError reports that every decode strategy failed.
type CorruptImageError struct {
	FormatGuess string
	Attempts    AttemptLog
}

func (e *CorruptImageError) Error() string {
	return fmt.Sprintf("all %d decode strategies failed (guess %s): %s",
		len(e.Attempts), e.FormatGuess, e.Attempts)
}

func (e *CorruptImageError) Unwrap() error { return ErrCorruptImage }

// TimeoutError reports that decoding did not finish within the processing
// timeout.
type TimeoutError struct {
	Timeout  time.Duration
	Elapsed  time.Duration
	Strategy string // strategy running when the deadline hit
	Attempts AttemptLog
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("decode exceeded %s (elapsed %s, during %s)",
		e.Timeout, e.Elapsed.Round(time.Millisecond), e.Strategy)
}

func (e *TimeoutError) Unwrap() error { return ErrProcessingTimeout }
