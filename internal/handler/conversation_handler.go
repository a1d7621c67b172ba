package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/model"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	// historyWindow bounds how many stored turns are handed to the context manager.
	historyWindow = 200

	replyMaxTokens   = 1000
	replyTemperature = 0.7
)

var languageNames = map[string]string{
	"eng": "English",
	"kny": "Kinyarwanda",
	"fr":  "French",
}

// normalizeLocale maps the app's language codes onto the stored locales.
func normalizeLocale(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "eng", "en":
		return "eng", true
	case "kny", "rw":
		return "kny", true
	case "fr":
		return "fr", true
	}
	return "", false
}

// SystemPrompt is the assistant persona, answering in the conversation language.
func SystemPrompt(locale string) string {
	lang, ok := languageNames[locale]
	if !ok {
		lang = "English"
	}
	return "You are Nganiriza, a friendly sexual and reproductive health educator for young people in Rwanda. " +
		"Give accurate, non-judgmental and age-appropriate answers, keep them short, and suggest seeing a health " +
		"provider when a question needs one. Reply in " + lang + "."
}

func (h *Handler) ListConversations(c *gin.Context) {
	p := parsePage(c)
	convs, total, err := h.store.ListConversations(c.Request.Context(), middleware.UserID(c), p.store())
	if err != nil {
		h.fail(c, err, "list conversations")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(convs)))
}

type createConversationRequest struct {
	Title    string `json:"title" binding:"max=255"`
	Language string `json:"language"`
	Channel  string `json:"channel" binding:"omitempty,oneof=web sms whatsapp"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if !bind(c, &req) {
		return
	}
	locale, ok := normalizeLocale(req.Language)
	if !ok {
		badRequest(c, "unsupported language")
		return
	}
	channel := req.Channel
	if channel == "" {
		channel = "web"
	}

	conv := &model.Conversation{
		ID:       uuid.New().String(),
		UserID:   middleware.UserID(c),
		Title:    strings.TrimSpace(req.Title),
		Language: locale,
		Channel:  channel,
	}
	if err := h.store.CreateConversation(c.Request.Context(), conv); err != nil {
		h.fail(c, err, "create conversation")
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) ownConversation(c *gin.Context) (*model.Conversation, bool) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		notFound(c)
		return nil, false
	}
	conv, err := h.store.Conversation(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.fail(c, err, "load conversation")
		return nil, false
	}
	return conv, true
}

func (h *Handler) GetConversation(c *gin.Context) {
	conv, ok := h.ownConversation(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		notFound(c)
		return
	}
	if err := h.store.DeleteConversation(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		h.fail(c, err, "delete conversation")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListMessages(c *gin.Context) {
	conv, ok := h.ownConversation(c)
	if !ok {
		return
	}
	limit := defaultMessageLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = min(max(v, 1), maxMessageLimit)
	}
	before := c.Query("before")
	if before != "" {
		if _, err := uuid.Parse(before); err != nil {
			badRequest(c, "before must be a message id")
			return
		}
	}

	msgs, err := h.store.Messages(c.Request.Context(), conv.ID, before, limit)
	if err != nil {
		h.fail(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID, "results": orEmpty(msgs)})
}

type postMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
	// Reply defaults to true; false stores the turn without asking the assistant.
	Reply *bool `json:"reply"`
}

func toChat(msgs []model.Message) []chatctx.Message {
	out := make([]chatctx.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatctx.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if !bind(c, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"content": "This field is required."}})
		return
	}

	conv, ok := h.ownConversation(c)
	if !ok {
		return
	}

	mod := h.moderator.Check(content)
	if mod.Blocked() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message blocked by moderation", "flags": mod.Flags})
		return
	}

	ctx := c.Request.Context()
	history, err := h.store.Messages(ctx, conv.ID, "", historyWindow)
	if err != nil {
		h.fail(c, err, "load history")
		return
	}

	userMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           chatctx.RoleUser,
		Content:        content,
		Flags:          mod.Flags,
	}
	if err := h.store.AddMessage(ctx, userMsg); err != nil {
		h.fail(c, err, "store message")
		return
	}

	resp := gin.H{"user_message": userMsg, "assistant_message": nil, "summarized": false, "title": conv.Title}
	if req.Reply != nil && !*req.Reply {
		c.JSON(http.StatusCreated, resp)
		return
	}
	if h.chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant unavailable", "user_message": userMsg})
		return
	}

	reply, err := h.chat.Respond(ctx, toChat(history), content, SystemPrompt(conv.Language),
		chatctx.Options{MaxTokens: replyMaxTokens, Temperature: replyTemperature})
	if err != nil {
		h.log.Error("assistant reply", zap.String("conversation_id", conv.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant unavailable", "user_message": userMsg})
		return
	}

	botMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           chatctx.RoleAssistant,
		Content:        reply.Content,
	}
	if err := h.store.AddMessage(ctx, botMsg); err != nil {
		h.fail(c, err, "store reply")
		return
	}
	resp["assistant_message"] = botMsg
	resp["summarized"] = reply.Summarized

	if reply.Summarized && reply.Summary != "" {
		if err := h.store.SetConversationSummary(ctx, conv.ID, reply.Summary); err != nil {
			h.log.Warn("store summary", zap.Error(err))
		}
	}

	if conv.Title == "" && !hasAssistantTurn(history) {
		title := h.chat.GenerateTitle(ctx, []chatctx.Message{
			{Role: chatctx.RoleUser, Content: content},
			{Role: chatctx.RoleAssistant, Content: reply.Content},
		}, chatctx.DefaultTitleLength)
		if err := h.store.SetConversationTitle(ctx, conv.ID, title); err != nil {
			h.log.Warn("store title", zap.Error(err))
		} else {
			resp["title"] = title
		}
	}

	c.JSON(http.StatusCreated, resp)
}

func hasAssistantTurn(msgs []model.Message) bool {
	for _, m := range msgs {
		if m.Role == chatctx.RoleAssistant {
			return true
		}
	}
	return false
}

// RegenerateTitle rebuilds the title from the stored turns.
func (h *Handler) RegenerateTitle(c *gin.Context) {
	conv, ok := h.ownConversation(c)
	if !ok {
		return
	}
	if h.chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant unavailable"})
		return
	}
	ctx := c.Request.Context()
	msgs, err := h.store.Messages(ctx, conv.ID, "", historyWindow)
	if err != nil {
		h.fail(c, err, "load messages")
		return
	}

	title := h.chat.GenerateTitle(ctx, toChat(msgs), chatctx.DefaultTitleLength)
	if err := h.store.SetConversationTitle(ctx, conv.ID, title); err != nil {
		h.fail(c, err, "store title")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": conv.ID, "title": title})
}
