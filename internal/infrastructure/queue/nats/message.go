package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/neurotask/internal/core/domain"
)

// DefaultSubject carries extraction requests from the API to the workers.
const DefaultSubject = "doctext.extract"

type extractRequest struct {
	StorageKey string `json:"storage_key"`
	Name       string `json:"name"`
	MediaType  string `json:"media_type"`
	SizeBytes  int64  `json:"size_bytes"`
}

type extractReply struct {
	Format domain.FormatClass `json:"format,omitempty"`
	Text   string             `json:"text"`
	Error  *replyError        `json:"error,omitempty"`
}

type replyError struct {
	Kind    string             `json:"kind"`
	Format  domain.FormatClass `json:"format,omitempty"`
	Detail  string             `json:"detail,omitempty"`
	Message string             `json:"message,omitempty"`
}

const (
	replyKindCanceled = "canceled"
	replyKindInternal = "internal"
)

var errWorkerCanceled = errors.New("extraction canceled by worker")

func encodeReply(result *domain.ExtractionResult, err error) []byte {
	var reply extractReply
	switch {
	case err != nil:
		reply.Error = toReplyError(err)
	case result != nil:
		reply.Format = result.Format
		reply.Text = result.Text
	}
	raw, marshalErr := json.Marshal(reply)
	if marshalErr != nil {
		raw, _ = json.Marshal(extractReply{Error: &replyError{Kind: replyKindInternal, Message: marshalErr.Error()}})
	}
	return raw
}

func toReplyError(err error) *replyError {
	if failure, ok := domain.AsExtractionFailure(err); ok {
		return &replyError{Kind: string(failure.Kind), Format: failure.Format, Detail: failure.Detail}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &replyError{Kind: replyKindCanceled, Message: err.Error()}
	}
	return &replyError{Kind: replyKindInternal, Message: err.Error()}
}

func decodeReply(data []byte) (*domain.ExtractionResult, error) {
	var reply extractReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "decode extraction reply", err)
	}
	if reply.Error != nil {
		return nil, reply.Error.toError()
	}
	return &domain.ExtractionResult{Text: reply.Text, Format: reply.Format}, nil
}

// toError rebuilds the failure the worker produced so callers can branch
// on its kind exactly as with local extraction.
func (e *replyError) toError() error {
	switch domain.FailureKind(e.Kind) {
	case domain.FailureUnsupportedFormat:
		return domain.NewUnsupportedFormat(e.Detail)
	case domain.FailureReadError:
		return domain.NewReadFailure(e.Format, errors.New(e.Detail))
	case domain.FailureDecodeError:
		return domain.NewDecodeFailure(e.Format, errors.New(e.Detail))
	case replyKindCanceled:
		return domain.WrapError(domain.ErrTemporary, "remote extract", fmt.Errorf("%w: %s", errWorkerCanceled, e.Message))
	default:
		return domain.WrapError(domain.ErrUpstream, "remote extract", errors.New(e.Message))
	}
}
