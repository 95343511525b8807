package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/neurotask/internal/infrastructure/resilience"
)

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   opts.ResilienceExecutor,
	}
}

// Generator produces completions with the Ollama generate endpoint.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("ollama generate: empty prompt")
	}
	text, err := resilience.Do(ctx, g.client.executor, "ollama.generate", func(ctx context.Context) (string, error) {
		return g.client.generate(ctx, prompt)
	}, classifyGenerate)
	if err != nil {
		return "", plannerError(g.client.model, err)
	}
	return text, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	var response generateResponse
	req := generateRequest{Model: c.model, Prompt: prompt, Stream: false}
	if err := c.postJSON(ctx, "/api/generate", req, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
