package handler

import (
	"context"

	"go.uber.org/zap"

	"nganiriza-api/internal/chatctx"
	"nganiriza-api/internal/llm"
	"nganiriza-api/internal/mail"
	"nganiriza-api/internal/moderation"
	"nganiriza-api/internal/ollama"
	"nganiriza-api/internal/store"
)

// ChatHealth reports on the chat backend.
type ChatHealth interface {
	Health(ctx context.Context) ollama.Health
}

type Deps struct {
	Store     *store.Store
	Chat      *chatctx.Manager
	ChatProbe ChatHealth
	Cached    *llm.Service
	Notifier  *mail.Notifier
	Moderator *moderation.Moderator
	Log       *zap.Logger
	Secret    string
}

type Handler struct {
	store     *store.Store
	chat      *chatctx.Manager
	chatProbe ChatHealth
	cached    *llm.Service
	notify    *mail.Notifier
	moderator *moderation.Moderator
	log       *zap.Logger
	secret    string
}

func New(d Deps) *Handler {
	h := &Handler{
		store:     d.Store,
		chat:      d.Chat,
		chatProbe: d.ChatProbe,
		cached:    d.Cached,
		notify:    d.Notifier,
		moderator: d.Moderator,
		log:       d.Log,
		secret:    d.Secret,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.moderator == nil {
		h.moderator = moderation.New(moderation.DefaultBanned)
	}
	return h
}
