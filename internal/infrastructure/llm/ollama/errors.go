package ollama

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/infrastructure/resilience"
)

// errMalformedReply marks a 2xx reply whose body is not the expected JSON.
var errMalformedReply = errors.New("malformed reply")

// statusError is a non-2xx reply from the Ollama API.
type statusError struct {
	operation string
	code      int
	body      string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("ollama %s: HTTP %d", e.operation, e.code)
	}
	return fmt.Sprintf("ollama %s: HTTP %d: %s", e.operation, e.code, e.body)
}

// busy reports statuses Ollama returns while a model loads or the host is
// saturated.
func (e *statusError) busy() bool {
	switch e.code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// classifyGenerate drives the retry loop and the breaker. Only a busy or
// unreachable host is retried. A missing model or a bad request is a
// configuration fault and does not count against the breaker.
func classifyGenerate(err error) resilience.ErrorClassification {
	var status *statusError
	switch {
	case err == nil, resilience.IsContextError(err):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{}
	case errors.As(err, &status):
		if status.busy() {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{}
	case errors.Is(err, errMalformedReply):
		return resilience.ErrorClassification{RecordFailure: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// plannerError maps a failed generate call onto the domain kinds the task
// planner surfaces: busy or unreachable hosts are ErrTemporary, everything
// the host answered wrongly is ErrUpstream. Context errors pass through.
func plannerError(model string, err error) error {
	if err == nil || resilience.IsContextError(err) {
		return err
	}
	const op = "ollama generate"

	var status *statusError
	if errors.As(err, &status) {
		switch {
		case status.code == http.StatusNotFound:
			return domain.WrapError(domain.ErrUpstream, op, fmt.Errorf("model %q is not available: %w", model, err))
		case status.busy():
			return domain.WrapError(domain.ErrTemporary, op, err)
		default:
			return domain.WrapError(domain.ErrUpstream, op, err)
		}
	}

	var netErr net.Error
	if resilience.IsCircuitOpen(err) || errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return domain.WrapError(domain.ErrUpstream, op, err)
}
