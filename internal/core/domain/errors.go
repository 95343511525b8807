package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
	ErrUpstream     = errors.New("upstream failure")

	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrReadFailure       = errors.New("read error")
	ErrDecodeFailure     = errors.New("decode error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type FailureKind string

const (
	FailureUnsupportedFormat FailureKind = "unsupported_format"
	FailureReadError         FailureKind = "read_error"
	FailureDecodeError       FailureKind = "decode_error"
)

// ExtractionFailure is the terminal error of one extraction call. Detail is
// the offending declared media type for UnsupportedFormat and the underlying
// cause otherwise.
type ExtractionFailure struct {
	Kind   FailureKind `json:"kind"`
	Format FormatClass `json:"format"`
	Detail string      `json:"detail"`
	Err    error       `json:"-"`
}

func NewUnsupportedFormat(mediaType string) *ExtractionFailure {
	return &ExtractionFailure{
		Kind:   FailureUnsupportedFormat,
		Format: FormatUnsupported,
		Detail: mediaType,
	}
}

func NewReadFailure(format FormatClass, err error) *ExtractionFailure {
	return &ExtractionFailure{
		Kind:   FailureReadError,
		Format: format,
		Detail: errorText(err),
		Err:    err,
	}
}

func NewDecodeFailure(format FormatClass, err error) *ExtractionFailure {
	return &ExtractionFailure{
		Kind:   FailureDecodeError,
		Format: format,
		Detail: errorText(err),
		Err:    err,
	}
}

func (f *ExtractionFailure) Error() string {
	switch f.Kind {
	case FailureUnsupportedFormat:
		return fmt.Sprintf("unsupported format: %q", f.Detail)
	default:
		return fmt.Sprintf("%s (%s): %s", f.kindError().Error(), f.Format, f.Detail)
	}
}

func (f *ExtractionFailure) Unwrap() []error {
	errs := []error{f.kindError()}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

func (f *ExtractionFailure) kindError() error {
	switch f.Kind {
	case FailureUnsupportedFormat:
		return ErrUnsupportedFormat
	case FailureReadError:
		return ErrReadFailure
	default:
		return ErrDecodeFailure
	}
}

// AsExtractionFailure unwraps err to the structured failure, if any.
func AsExtractionFailure(err error) (*ExtractionFailure, bool) {
	var failure *ExtractionFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
