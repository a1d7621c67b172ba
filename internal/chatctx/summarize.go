package chatctx

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	summarySystemPrompt = "You are a helpful assistant that creates concise summaries of conversations."
	summaryMaxTokens    = 500
	summaryTemperature  = 0.3
	summaryFallbackLen  = 500

	titleSystemPrompt = "You are a helpful assistant that creates concise, descriptive titles for conversations. Return only the title, no additional text."
	titleMaxTokens    = 20
	titleTemperature  = 0.5

	DefaultTitleLength = 50
	DefaultTitle       = "New Conversation"
)

// Summarize condenses the non-system turns of history. It never fails: when the
// backend is unreachable it returns a placeholder built from the turns themselves.
func (m *Manager) Summarize(ctx context.Context, history []Message) string {
	var lines []string
	for _, msg := range history {
		if msg.Role == RoleSystem {
			continue
		}
		lines = append(lines, msg.Role+": "+msg.Content)
	}
	if len(lines) == 0 {
		return ""
	}
	text := strings.Join(lines, "\n")

	prompt := fmt.Sprintf("Please provide a concise summary of the following conversation, preserving key information and context:\n\n%s\n\nSummary:", text)
	out, err := m.backend.Complete(ctx, []Message{
		{Role: RoleSystem, Content: summarySystemPrompt},
		{Role: RoleUser, Content: prompt},
	}, Options{MaxTokens: summaryMaxTokens, Temperature: summaryTemperature})
	if err == nil {
		if out = strings.TrimSpace(out); out != "" {
			return out
		}
	}

	m.log.Warn("summarization failed, using fallback", zap.Error(err), zap.Int("messages", len(lines)))
	if len(lines) > 4 {
		return fmt.Sprintf("[Previous conversation with %d messages]", len(lines))
	}
	return truncate(text, summaryFallbackLen) + "..."
}

// GenerateTitle returns a non-empty title of at most maxLength characters.
func (m *Manager) GenerateTitle(ctx context.Context, messages []Message, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultTitleLength
	}

	var users []string
	for _, msg := range messages {
		if msg.Role == RoleUser {
			users = append(users, msg.Content)
			if len(users) == 3 {
				break
			}
		}
	}
	if len(users) == 0 {
		return truncate(DefaultTitle, maxLength)
	}

	fallback := strings.TrimSpace(truncate(strings.TrimSpace(users[0]), maxLength))
	if fallback == "" {
		fallback = truncate(DefaultTitle, maxLength)
	}

	first := users
	if len(first) > 2 {
		first = first[:2]
	}
	prompt := fmt.Sprintf("Based on this conversation, generate a short, descriptive title (max %d characters):\n\n%s\n\nTitle:",
		maxLength, strings.Join(first, "\n"))

	out, err := m.backend.Complete(ctx, []Message{
		{Role: RoleSystem, Content: titleSystemPrompt},
		{Role: RoleUser, Content: prompt},
	}, Options{MaxTokens: titleMaxTokens, Temperature: titleTemperature})
	if err != nil {
		m.log.Warn("title generation failed, using first message", zap.Error(err))
		return fallback
	}

	title := cleanTitle(out, maxLength)
	if len([]rune(title)) < 3 {
		return fallback
	}
	return title
}

func cleanTitle(s string, maxLength int) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'`))
	return strings.TrimSpace(truncate(s, maxLength))
}
