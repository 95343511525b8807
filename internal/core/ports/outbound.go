package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

// DocumentLoader materializes a document payload in memory.
type DocumentLoader interface {
	LoadText(ctx context.Context, doc *domain.Document) (string, error)
	LoadBytes(ctx context.Context, doc *domain.Document) ([]byte, error)
}

// MarkupStripper returns the visible text of markup. It never fails.
type MarkupStripper interface {
	Strip(markup string) string
}

// ContainerDecoder turns a binary container into plain text.
type ContainerDecoder interface {
	Decode(data []byte) (string, error)
}

// ObjectStorage stages source documents for remote extraction.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ExtractionLog records extraction outcomes (metadata only).
type ExtractionLog interface {
	Record(ctx context.Context, rec domain.ExtractionRecord) error
}

// ExtractionObserver receives one observation per extraction.
type ExtractionObserver interface {
	ObserveExtraction(format domain.FormatClass, outcome domain.ExtractionOutcome, duration time.Duration)
}

// TextGenerator is the remote text-generation model.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
