package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/agentsflowai/agentsflow/internal/metrics"
)

// OllamaClient calls a local Ollama chat endpoint.
type OllamaClient struct {
	baseURL string
	client  *http.Client
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []ChatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaChatResponse struct {
	Model           string      `json:"model"`
	Message         ChatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

// NewOllamaClient creates a client for the given base URL
// (e.g. "http://localhost:11434"). Per-call deadlines come from the
// caller's context; the embedded http.Client carries no timeout of its own.
func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Complete sends a non-streaming chat request and returns the reply text
// with token usage. Deadline expiry is reported as ErrTimeout.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   false,
		Options:  &ollamaOptions{Temperature: req.Temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	metrics.LLMRequestDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("calling ollama: %w", ErrTimeout)
		}
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(data))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	return &Completion{
		Text:       out.Message.Content,
		TokensUsed: out.PromptEvalCount + out.EvalCount,
	}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
