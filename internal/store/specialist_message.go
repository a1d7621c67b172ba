package store

import (
	"context"
	"fmt"

	"nganiriza-api/internal/model"
)

const smCols = `id, user_id, specialist_id, sender_role, subject, body, is_read, created_at`

func (s *Store) CreateSpecialistMessage(ctx context.Context, m *model.SpecialistMessage) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO specialist_messages (id, user_id, specialist_id, sender_role, subject, body)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at`,
		m.ID, m.UserID, m.SpecialistID, m.SenderRole, m.Subject, m.Body,
	).Scan(&m.CreatedAt)
	return mapErr(err)
}

type MessageFilter struct {
	UserID       string
	SpecialistID string
}

func (s *Store) ListSpecialistMessages(ctx context.Context, f MessageFilter, p Page) ([]model.SpecialistMessage, int, error) {
	where := `WHERE 1=1`
	var args []any
	if f.UserID != "" {
		args = append(args, f.UserID)
		where += fmt.Sprintf(` AND user_id = $%d`, len(args))
	}
	if f.SpecialistID != "" {
		args = append(args, f.SpecialistID)
		where += fmt.Sprintf(` AND specialist_id = $%d`, len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM specialist_messages `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+smCols+` FROM specialist_messages `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.SpecialistMessage
	for rows.Next() {
		var m model.SpecialistMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.SpecialistID, &m.SenderRole, &m.Subject, &m.Body, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// MarkThreadRead marks messages sent by the other party as read.
func (s *Store) MarkThreadRead(ctx context.Context, userID, specialistID, readerRole string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE specialist_messages SET is_read = true
		 WHERE user_id = $1 AND specialist_id = $2 AND sender_role <> $3 AND NOT is_read`,
		userID, specialistID, readerRole)
	return err
}

// Contacts lists specialists the user has booked or written to.
func (s *Store) Contacts(ctx context.Context, userID string) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sp.id, trim(u.first_name || ' ' || u.last_name), sp.specialty,
		        (SELECT MAX(created_at) FROM specialist_messages m WHERE m.specialist_id = sp.id AND m.user_id = $1),
		        (SELECT COUNT(*) FROM specialist_messages m
		          WHERE m.specialist_id = sp.id AND m.user_id = $1 AND m.sender_role = 'specialist' AND NOT m.is_read)
		 FROM specialist_profiles sp JOIN users u ON u.id = sp.user_id
		 WHERE sp.id IN (
		     SELECT specialist_id FROM appointments WHERE user_id = $1
		     UNION
		     SELECT specialist_id FROM specialist_messages WHERE user_id = $1)
		 ORDER BY 4 DESC NULLS LAST, 2`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.SpecialistID, &c.Name, &c.Specialty, &c.LastMessageAt, &c.UnreadMessages); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
