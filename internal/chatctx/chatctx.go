// Package chatctx assembles chat-completion prompts from a running conversation,
// keeps them under a token budget by summarizing older turns, and produces titles.
package chatctx

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	DefaultMaxContext = 32000
	DefaultThreshold  = 0.8

	// CharsPerToken is the divisor used by EstimateTokens.
	CharsPerToken = 4
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	MaxTokens   int
	Temperature float64
}

// Backend is a chat-completion service.
type Backend interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

type Manager struct {
	backend    Backend
	log        *zap.Logger
	maxContext int
	threshold  float64
}

type Option func(*Manager)

func WithMaxContext(tokens int) Option {
	return func(m *Manager) {
		if tokens > 0 {
			m.maxContext = tokens
		}
	}
}

func WithThreshold(f float64) Option {
	return func(m *Manager) {
		if f > 0 && f <= 1 {
			m.threshold = f
		}
	}
}

func New(backend Backend, log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		backend:    backend,
		log:        log,
		maxContext: DefaultMaxContext,
		threshold:  DefaultThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// BuildMessages returns [system?] + history + {user, query}. The history slice is copied.
func BuildMessages(history []Message, query, systemPrompt string) []Message {
	out := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		if m.Role == "" {
			m.Role = RoleUser
		}
		out = append(out, m)
	}
	return append(out, Message{Role: RoleUser, Content: query})
}

// EstimateTokens approximates the token count of text as characters / CharsPerToken.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / CharsPerToken
}

// NeedsSummarization reports whether the joined message contents exceed
// maxContext*threshold tokens, along with the estimate itself.
func NeedsSummarization(messages []Message, maxContext int, threshold float64) (bool, int) {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	total := EstimateTokens(strings.Join(parts, " "))
	return float64(total) > float64(maxContext)*threshold, total
}

// Reply is the result of Respond.
type Reply struct {
	Content         string
	Summarized      bool
	Summary         string
	EstimatedTokens int
}

// Respond builds the prompt for query, compresses it when it crosses the
// context threshold, and asks the backend for the assistant turn.
func (m *Manager) Respond(ctx context.Context, history []Message, query, systemPrompt string, opts Options) (Reply, error) {
	messages := BuildMessages(history, query, systemPrompt)

	var r Reply
	need, total := NeedsSummarization(messages, m.maxContext, m.threshold)
	r.EstimatedTokens = total

	if need {
		var system, turns []Message
		for _, msg := range messages[:len(messages)-1] {
			if msg.Role == RoleSystem {
				system = append(system, msg)
			} else {
				turns = append(turns, msg)
			}
		}

		// an oversized query with no history has nothing to fold away
		if len(turns) > 0 {
			m.log.Info("context over threshold, summarizing",
				zap.Int("estimated_tokens", total),
				zap.Int("max_context", m.maxContext),
			)
			r.Summary = m.Summarize(ctx, turns)
			r.Summarized = true

			compact := make([]Message, 0, len(system)+2)
			compact = append(compact, system...)
			compact = append(compact, Message{Role: RoleSystem, Content: "Previous conversation summary: " + r.Summary})
			messages = append(compact, messages[len(messages)-1])
			_, r.EstimatedTokens = NeedsSummarization(messages, m.maxContext, m.threshold)
		}
	}

	out, err := m.backend.Complete(ctx, messages, opts)
	if err != nil {
		return r, err
	}
	r.Content = out
	return r, nil
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
