package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestExtractionFailureMatchesKindSentinel(t *testing.T) {
	cause := errors.New("bad xref")
	err := fmt.Errorf("extract: %w", NewDecodeFailure(FormatPDF, cause))

	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
	if errors.Is(err, ErrReadFailure) {
		t.Fatalf("decode failure must not match read failure")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}

	failure, ok := AsExtractionFailure(err)
	if !ok {
		t.Fatalf("expected structured failure")
	}
	if failure.Kind != FailureDecodeError || failure.Format != FormatPDF {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if failure.Detail != "bad xref" {
		t.Fatalf("unexpected detail %q", failure.Detail)
	}
}

func TestUnsupportedFormatCarriesDeclaredType(t *testing.T) {
	err := NewUnsupportedFormat("application/octet-stream")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat")
	}
	if err.Detail != "application/octet-stream" {
		t.Fatalf("unexpected detail %q", err.Detail)
	}
	if err.Error() != `unsupported format: "application/octet-stream"` {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestOutcomeOf(t *testing.T) {
	if OutcomeOf(nil) != OutcomeOK {
		t.Fatalf("nil error should be ok")
	}
	if got := OutcomeOf(NewReadFailure(FormatCSV, errors.New("x"))); got != "read_error" {
		t.Fatalf("unexpected outcome %q", got)
	}
	if got := OutcomeOf(errors.New("boom")); got != "error" {
		t.Fatalf("unexpected outcome %q", got)
	}
}

func TestWrapErrorKeepsKind(t *testing.T) {
	err := WrapError(ErrInvalidInput, "plan tasks", errors.New("empty"))
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input kind")
	}
	if WrapError(ErrInvalidInput, "noop", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}
