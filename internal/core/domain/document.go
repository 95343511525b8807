package domain

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"
)

// OpenFunc returns a fresh reader over a document payload.
type OpenFunc func(ctx context.Context) (io.ReadCloser, error)

var errNoPayload = errors.New("document has no payload")

// Document is a caller-owned handle to an uploaded file. It is immutable:
// the pipeline reads it and never writes back.
type Document struct {
	name      string
	mediaType string
	size      int64
	open      OpenFunc
}

func NewDocument(name, mediaType string, size int64, open OpenFunc) *Document {
	if size < 0 {
		size = 0
	}
	return &Document{
		name:      name,
		mediaType: mediaType,
		size:      size,
		open:      open,
	}
}

// NewDocumentFromBytes wraps an in-memory payload. Every Open call yields an
// independent reader, so the backing slice is never exposed for writing.
func NewDocumentFromBytes(name, mediaType string, data []byte) *Document {
	return NewDocument(name, mediaType, int64(len(data)), func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

func (d *Document) Name() string      { return d.name }
func (d *Document) MediaType() string { return d.mediaType }
func (d *Document) Size() int64       { return d.size }

func (d *Document) Open(ctx context.Context) (io.ReadCloser, error) {
	if d.open == nil {
		return nil, errNoPayload
	}
	return d.open(ctx)
}

// ExtractionResult is the text produced for one document.
type ExtractionResult struct {
	Text   string      `json:"text"`
	Format FormatClass `json:"format"`
}

// Chars counts runes, not bytes.
func (r *ExtractionResult) Chars() int {
	if r == nil {
		return 0
	}
	return utf8.RuneCountInString(r.Text)
}

type ExtractionOutcome string

const (
	OutcomeOK ExtractionOutcome = "ok"
)

// OutcomeOf maps an extraction error to the outcome label used by metrics and
// the audit log.
func OutcomeOf(err error) ExtractionOutcome {
	if err == nil {
		return OutcomeOK
	}
	var failure *ExtractionFailure
	if errors.As(err, &failure) {
		return ExtractionOutcome(failure.Kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

// ExtractionRecord is the audit entry for one extraction. It carries
// metadata only; extracted text is never recorded.
type ExtractionRecord struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	MediaType  string            `json:"media_type"`
	SizeBytes  int64             `json:"size_bytes"`
	Format     FormatClass       `json:"format"`
	Outcome    ExtractionOutcome `json:"outcome"`
	Detail     string            `json:"detail,omitempty"`
	Chars      int               `json:"chars"`
	DurationMS float64           `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
}
