package ports

import (
	"context"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

// TextExtractor is the inbound contract of the extraction pipeline. A nil
// document yields a nil result and no error.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (*domain.ExtractionResult, error)
}

// TaskPlanner turns requirements text into a developer task list.
type TaskPlanner interface {
	Plan(ctx context.Context, text string) (*domain.TaskPlan, error)
}

// ExtractionHistory is the read model of the extraction audit log.
type ExtractionHistory interface {
	Recent(ctx context.Context, limit int) ([]domain.ExtractionRecord, error)
}
