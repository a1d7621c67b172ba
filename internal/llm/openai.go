package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"nganiriza-api/internal/chatctx"
)

// stop sequences for chat-tuned local models
var stopSequences = []string{"<|endoftext|>", "<|im_end|>"}

// OpenAIClient talks to an OpenAI-compatible /chat/completions server
// (llama.cpp server, vLLM, LM Studio).
type OpenAIClient struct {
	http  *resty.Client
	model string
}

func NewOpenAIClient(baseURL, model, apiKey string, timeout time.Duration) *OpenAIClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &OpenAIClient{http: c, model: model}
}

type completionRequest struct {
	Model       string            `json:"model"`
	Messages    []chatctx.Message `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature"`
	Stop        []string          `json:"stop,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Generate(ctx context.Context, messages []chatctx.Message, opts chatctx.Options) (Completion, error) {
	var parsed completionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        stopSequences,
		}).
		SetResult(&parsed).
		Post("/chat/completions")
	if err != nil {
		return Completion{}, fmt.Errorf("llm request failed: %w", err)
	}
	if resp.IsError() {
		return Completion{}, fmt.Errorf("llm non-success status=%d body=%s", resp.StatusCode(), truncate(resp.String(), 400))
	}

	var out Completion
	if parsed.Usage != nil {
		out.TokensUsed = parsed.Usage.TotalTokens
	}
	if len(parsed.Choices) > 0 {
		out.Text = strings.TrimSpace(parsed.Choices[0].Message.Content)
	}
	if out.Text == "" {
		return out, ErrEmptyCompletion
	}
	return out, nil
}

func (c *OpenAIClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.http.R().SetContext(ctx).Get("/models")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("llm models: %s", resp.Status())
	}
	return nil
}

func (c *OpenAIClient) Model() string { return c.model }

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
