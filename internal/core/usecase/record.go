package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
)

// RecordingExtractor decorates an extractor with metrics and the audit log.
// It returns exactly what the wrapped extractor returns; a failing audit
// write is logged and never turns a successful extraction into an error.
type RecordingExtractor struct {
	next     ports.TextExtractor
	log      ports.ExtractionLog
	observer ports.ExtractionObserver
	now      func() time.Time
}

func NewRecordingExtractor(next ports.TextExtractor, log ports.ExtractionLog, observer ports.ExtractionObserver) *RecordingExtractor {
	return &RecordingExtractor{
		next:     next,
		log:      log,
		observer: observer,
		now:      time.Now,
	}
}

func (r *RecordingExtractor) Extract(ctx context.Context, doc *domain.Document) (*domain.ExtractionResult, error) {
	if doc == nil {
		return r.next.Extract(ctx, doc)
	}

	start := r.now()
	result, err := r.next.Extract(ctx, doc)
	elapsed := r.now().Sub(start)

	format := domain.Classify(doc.MediaType(), doc.Name())
	outcome := domain.OutcomeOf(err)

	if r.observer != nil {
		r.observer.ObserveExtraction(format, outcome, elapsed)
	}
	if r.log != nil {
		rec := domain.ExtractionRecord{
			ID:         uuid.NewString(),
			Name:       doc.Name(),
			MediaType:  doc.MediaType(),
			SizeBytes:  doc.Size(),
			Format:     format,
			Outcome:    outcome,
			Chars:      result.Chars(),
			DurationMS: float64(elapsed.Microseconds()) / 1000.0,
			CreatedAt:  start.UTC(),
		}
		if err != nil {
			rec.Detail = err.Error()
		}
		// The audit write must outlive a caller deadline that already fired.
		if logErr := r.log.Record(context.WithoutCancel(ctx), rec); logErr != nil {
			slog.Warn("extraction_log_write_failed", "name", doc.Name(), "error", logErr)
		}
	}

	return result, err
}
