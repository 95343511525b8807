package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

// DefaultMaxBytes bounds how much of a single document is read into memory.
const DefaultMaxBytes int64 = 50 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	errTooLarge   = errors.New("document exceeds size limit")
	errNotUTF8    = errors.New("document is not valid UTF-8 text")
	errNoDocument = errors.New("document is nil")
)

// Loader reads the full payload of a document handle.
type Loader struct {
	maxBytes int64
}

func New(maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{maxBytes: maxBytes}
}

// LoadText reads the document as UTF-8 text. A leading byte order mark is
// dropped; an empty payload yields "".
func (l *Loader) LoadText(ctx context.Context, doc *domain.Document) (string, error) {
	raw, err := l.LoadBytes(ctx, doc)
	if err != nil {
		return "", err
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s", errNotUTF8, doc.Name())
	}
	return string(raw), nil
}

func (l *Loader) LoadBytes(ctx context.Context, doc *domain.Document) ([]byte, error) {
	if doc == nil {
		return nil, errNoDocument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", errTooLarge, doc.Size(), l.maxBytes)
	}

	reader, err := doc.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(&ctxReader{ctx: ctx, r: reader}, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > l.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", errTooLarge, l.maxBytes)
	}
	return raw, nil
}

// ctxReader stops a long read once the caller deadline fires.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
