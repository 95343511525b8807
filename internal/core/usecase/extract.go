package usecase

import (
	"context"
	"errors"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/core/ports"
)

// ExtractTextUseCase classifies a document and runs exactly one decode
// strategy on it. It holds no per-call state and is safe for concurrent use.
type ExtractTextUseCase struct {
	loader   ports.DocumentLoader
	stripper ports.MarkupStripper
	pdf      ports.ContainerDecoder
	word     ports.ContainerDecoder
}

func NewExtractTextUseCase(
	loader ports.DocumentLoader,
	stripper ports.MarkupStripper,
	pdf ports.ContainerDecoder,
	word ports.ContainerDecoder,
) *ExtractTextUseCase {
	return &ExtractTextUseCase{
		loader:   loader,
		stripper: stripper,
		pdf:      pdf,
		word:     word,
	}
}

func (uc *ExtractTextUseCase) Extract(ctx context.Context, doc *domain.Document) (*domain.ExtractionResult, error) {
	if doc == nil {
		return nil, nil
	}

	format := domain.Classify(doc.MediaType(), doc.Name())

	var (
		text string
		err  error
	)
	switch format.Strategy() {
	case domain.StrategyPassthrough:
		text, err = uc.loadText(ctx, doc, format)
	case domain.StrategyMarkup:
		text, err = uc.stripMarkup(ctx, doc, format)
	case domain.StrategyPDF:
		text, err = uc.decodeContainer(ctx, doc, format, uc.pdf)
	case domain.StrategyWord:
		text, err = uc.decodeContainer(ctx, doc, format, uc.word)
	default:
		return nil, domain.NewUnsupportedFormat(doc.MediaType())
	}
	if err != nil {
		return nil, err
	}

	// A caller deadline that expired mid-decode still discards the text.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	return &domain.ExtractionResult{Text: text, Format: format}, nil
}

func (uc *ExtractTextUseCase) loadText(ctx context.Context, doc *domain.Document, format domain.FormatClass) (string, error) {
	text, err := uc.loader.LoadText(ctx, doc)
	if err != nil {
		return "", readFailure(ctx, format, err)
	}
	return text, nil
}

func (uc *ExtractTextUseCase) stripMarkup(ctx context.Context, doc *domain.Document, format domain.FormatClass) (string, error) {
	markup, err := uc.loadText(ctx, doc, format)
	if err != nil {
		return "", err
	}
	return uc.stripper.Strip(markup), nil
}

func (uc *ExtractTextUseCase) decodeContainer(
	ctx context.Context,
	doc *domain.Document,
	format domain.FormatClass,
	decoder ports.ContainerDecoder,
) (string, error) {
	data, err := uc.loader.LoadBytes(ctx, doc)
	if err != nil {
		return "", readFailure(ctx, format, err)
	}
	text, err := decoder.Decode(data)
	if err != nil {
		return "", domain.NewDecodeFailure(format, err)
	}
	return text, nil
}

func readFailure(ctx context.Context, format domain.FormatClass, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctxErr
	}
	return domain.NewReadFailure(format, err)
}
