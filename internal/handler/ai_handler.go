package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/llm"
)

type queryRequest struct {
	Query        string         `json:"query" binding:"required,max=4000"`
	Context      map[string]any `json:"context"`
	MaxTokens    int            `json:"max_tokens" binding:"omitempty,gte=1,lte=4096"`
	Temperature  *float64       `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	SystemPrompt string         `json:"system_prompt" binding:"max=4000"`
	UseCache     *bool          `json:"use_cache"`
}

// Query answers a one-shot question through the response cache.
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if !bind(c, &req) {
		return
	}
	if h.cached == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant unavailable", "success": false})
		return
	}

	res, err := h.cached.Generate(c.Request.Context(), llm.Request{
		Query:        req.Query,
		Context:      req.Context,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		SystemPrompt: req.SystemPrompt,
		UseCache:     req.UseCache == nil || *req.UseCache,
	})
	if err != nil {
		h.log.Error("ai query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "success": false})
		return
	}
	c.JSON(http.StatusOK, res)
}

type chatRequest struct {
	Query        string            `json:"query" binding:"required,max=4000"`
	History      []chatctx.Message `json:"history" binding:"omitempty,dive"`
	SystemPrompt string            `json:"system_prompt" binding:"max=4000"`
	MaxTokens    int               `json:"max_tokens" binding:"omitempty,gte=1,lte=4096"`
	Temperature  *float64          `json:"temperature" binding:"omitempty,gte=0,lte=2"`
}

// Chat runs one context-managed turn over a caller-supplied history without
// persisting anything.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"query": "This field is required."}})
		return
	}
	if h.chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant unavailable"})
		return
	}

	opts := chatctx.Options{MaxTokens: replyMaxTokens, Temperature: replyTemperature}
	if req.MaxTokens > 0 {
		opts.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = SystemPrompt("eng")
	}

	reply, err := h.chat.Respond(c.Request.Context(), req.History, req.Query, prompt, opts)
	if err != nil {
		h.log.Error("ai chat", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response":         reply.Content,
		"summarized":       reply.Summarized,
		"summary":          reply.Summary,
		"estimated_tokens": reply.EstimatedTokens,
	})
}

type titleRequest struct {
	Messages  []chatctx.Message `json:"messages" binding:"required,min=1"`
	MaxLength int               `json:"max_length" binding:"omitempty,gte=5,lte=200"`
}

func (h *Handler) GenerateTitle(c *gin.Context) {
	var req titleRequest
	if !bind(c, &req) {
		return
	}
	if h.chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant unavailable"})
		return
	}
	title := h.chat.GenerateTitle(c.Request.Context(), req.Messages, req.MaxLength)
	c.JSON(http.StatusOK, gin.H{"title": title})
}

// AIHealth reports both model backends. Only the chat backend decides the status code.
func (h *Handler) AIHealth(c *gin.Context) {
	ctx := c.Request.Context()
	out := gin.H{"status": "healthy"}
	code := http.StatusOK

	if h.chatProbe != nil {
		ch := h.chatProbe.Health(ctx)
		out["ollama"] = ch
		if ch.Status != "healthy" {
			out["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	} else {
		out["ollama"] = gin.H{"status": "disabled"}
	}

	if h.cached != nil {
		if err := h.cached.Ping(ctx); err != nil {
			out["llm"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			out["llm"] = gin.H{"status": "healthy"}
		}
	} else {
		out["llm"] = gin.H{"status": "disabled"}
	}

	c.JSON(code, out)
}
