package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

type errorPayload struct {
	Kind   string             `json:"kind"`
	Format domain.FormatClass `json:"format,omitempty"`
	Detail string             `json:"detail,omitempty"`
}

func errorBody(kind string, format domain.FormatClass, detail string) map[string]errorPayload {
	return map[string]errorPayload{"error": {Kind: kind, Format: format, Detail: detail}}
}

func mapErrorToHTTPStatus(err error) int {
	if failure, ok := domain.AsExtractionFailure(err); ok {
		switch failure.Kind {
		case domain.FailureUnsupportedFormat:
			return http.StatusUnsupportedMediaType
		case domain.FailureDecodeError:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadRequest
		}
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	if failure, ok := domain.AsExtractionFailure(err); ok {
		return string(failure.Kind)
	}
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return "payload_too_large"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if failure, ok := domain.AsExtractionFailure(err); ok {
		writeJSON(w, status, errorBody(string(failure.Kind), failure.Format, failure.Detail))
		return
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}
	writeJSON(w, status, errorBody(errorKind(err), "", detail))
}
