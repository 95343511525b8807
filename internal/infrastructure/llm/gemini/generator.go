package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/neurotask/internal/core/domain"
	"github.com/kirillkom/neurotask/internal/infrastructure/resilience"
)

const DefaultModel = "gemini-1.5-flash"

// Generator calls a Gemini model through the generative-ai SDK.
type Generator struct {
	client    *genai.Client
	modelName string
	executor  *resilience.Executor
}

func New(ctx context.Context, apiKey, modelName string, executor *resilience.Executor) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key not set")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Generator{client: cl, modelName: modelName, executor: executor}, nil
}

func (g *Generator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := resilience.Do(ctx, g.executor, "gemini.generate", func(ctx context.Context) (string, error) {
		resp, err := g.client.GenerativeModel(g.modelName).GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		return candidateText(resp), nil
	}, classifyGeminiError)
	if err != nil {
		if classifyGeminiError(err).Retryable || resilience.IsCircuitOpen(err) {
			return "", domain.WrapError(domain.ErrTemporary, "gemini generate", err)
		}
		return "", domain.WrapError(domain.ErrUpstream, "gemini generate", err)
	}
	return text, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func classifyGeminiError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsContextError(err) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if st, ok := status.FromError(errors.Unwrap(err)); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.Internal:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
