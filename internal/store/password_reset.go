package store

import (
	"context"
	"time"
)

// UpsertPasswordReset replaces any pending code for email.
func (s *Store) UpsertPasswordReset(ctx context.Context, email, code string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO password_resets (email, code, expires_at) VALUES (lower($1), $2, $3)
		 ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at, created_at = NOW()`,
		email, code, expiresAt)
	return err
}

// ConsumePasswordReset deletes the code if it matches and is unexpired.
func (s *Store) ConsumePasswordReset(ctx context.Context, email, code string, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM password_resets WHERE email = lower($1) AND code = $2 AND expires_at > $3`,
		email, code, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) PurgePasswordResets(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
