// Package ollama is a client for the Ollama chat API.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"nganiriza-api/internal/chatctx"
)

const (
	chatTimeout   = 120 * time.Second
	healthTimeout = 5 * time.Second
)

var ErrEmptyResponse = errors.New("ollama: empty response")

type Client struct {
	http  *resty.Client
	model string
}

func New(baseURL, model string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(chatTimeout)
	return &Client{http: c, model: model}
}

func (c *Client) Model() string { return c.model }

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []chatctx.Message `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  chatOptions       `json:"options"`
}

type chatResponse struct {
	Model   string          `json:"model"`
	Message chatctx.Message `json:"message"`
	Done    bool            `json:"done"`
}

type apiError struct {
	Error string `json:"error"`
}

// Complete sends a non-streaming /api/chat request and returns the assistant text.
func (c *Client) Complete(ctx context.Context, messages []chatctx.Message, opts chatctx.Options) (string, error) {
	var out chatResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:    c.model,
			Messages: messages,
			Options:  chatOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != "" {
			return "", fmt.Errorf("ollama chat: %s: %s", resp.Status(), apiErr.Error)
		}
		return "", fmt.Errorf("ollama chat: %s", resp.Status())
	}
	if out.Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return out.Message.Content, nil
}

type Health struct {
	Status string   `json:"status"`
	Model  string   `json:"model"`
	Models []string `json:"available_models,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Health queries /api/tags. It never returns an error; failures are reported in Status.
func (c *Client) Health(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	h := Health{Model: c.model}
	var tags tagsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
	switch {
	case err != nil:
		h.Status, h.Error = "unhealthy", err.Error()
	case resp.IsError():
		h.Status, h.Error = "unhealthy", "HTTP "+resp.Status()
	default:
		h.Status = "healthy"
		for _, m := range tags.Models {
			h.Models = append(h.Models, m.Name)
		}
	}
	return h
}
