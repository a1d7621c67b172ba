package store

import (
	"context"
	"fmt"

	"nganiriza-api/internal/model"
)

const convCols = `id, user_id, title, language, channel, summary, created_at, updated_at`

func scanConversation(r rowScanner) (*model.Conversation, error) {
	c := &model.Conversation{}
	if err := r.Scan(&c.ID, &c.UserID, &c.Title, &c.Language, &c.Channel, &c.Summary, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (s *Store) CreateConversation(ctx context.Context, c *model.Conversation) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, user_id, title, language, channel)
		 VALUES ($1,$2,$3,$4,$5) RETURNING created_at, updated_at`,
		c.ID, c.UserID, c.Title, c.Language, c.Channel,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

// Conversation loads one of the user's non-deleted conversations.
func (s *Store) Conversation(ctx context.Context, id, userID string) (*model.Conversation, error) {
	return scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+convCols+` FROM conversations WHERE id = $1 AND user_id = $2 AND NOT is_deleted`,
		id, userID))
}

func (s *Store) ListConversations(ctx context.Context, userID string, p Page) ([]model.Conversation, int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = $1 AND NOT is_deleted`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+convCols+` FROM conversations
		 WHERE user_id = $1 AND NOT is_deleted
		 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`, userID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteConversation(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET is_deleted = true, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND NOT is_deleted`, id, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetConversationTitle(ctx context.Context, id, title string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $1, updated_at = NOW() WHERE id = $2`, title, id)
	return err
}

func (s *Store) SetConversationSummary(ctx context.Context, id, summary string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET summary = $1, updated_at = NOW() WHERE id = $2`, summary, id)
	return err
}

// AddMessage appends a turn and bumps the conversation's updated_at.
func (s *Store) AddMessage(ctx context.Context, m *model.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, flags)
		 VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		m.ID, m.ConversationID, m.Role, m.Content, nonNil(m.Flags),
	).Scan(&m.CreatedAt)
	if err != nil {
		return mapErr(err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, m.ConversationID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Messages returns up to limit turns in chronological order. When before is set,
// only turns older than that message are considered.
func (s *Store) Messages(ctx context.Context, conversationID, before string, limit int) ([]model.Message, error) {
	q := `SELECT id, conversation_id, role, content, flags, created_at FROM messages
		WHERE conversation_id = $1`
	args := []any{conversationID}
	if before != "" {
		q += ` AND created_at < (SELECT created_at FROM messages WHERE id = $2 AND conversation_id = $1)`
		args = append(args, before)
	}
	args = append(args, limit)
	q = `SELECT * FROM (` + q + fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)) + `) recent ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Flags, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
