package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCandidateTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("[{"), genai.Blob{MIMEType: "image/png"}, genai.Text("}]")}},
		}},
	}
	if got := candidateText(resp); got != "[{}]" {
		t.Fatalf("candidateText() = %q", got)
	}
	if got := candidateText(&genai.GenerateContentResponse{}); got != "" {
		t.Fatalf("expected empty text without candidates, got %q", got)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), " ", "", nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestClassifyGeminiError(t *testing.T) {
	wrap := func(c codes.Code) error { return fmt.Errorf("gemini generate: %w", status.Error(c, "x")) }

	if !classifyGeminiError(wrap(codes.Unavailable)).Retryable {
		t.Fatalf("unavailable must be retryable")
	}
	if got := classifyGeminiError(wrap(codes.InvalidArgument)); got.Retryable || got.RecordFailure {
		t.Fatalf("invalid argument must be permanent, got %+v", got)
	}
	if classifyGeminiError(context.Canceled).Retryable {
		t.Fatalf("cancellation must not be retried")
	}
	if !classifyGeminiError(errors.New("other")).RecordFailure {
		t.Fatalf("unknown errors count against the breaker")
	}
}
