package store

import (
	"context"
	"fmt"

	"nganiriza-api/internal/model"
)

const userCols = `id, email, password_hash, first_name, last_name, phone_number,
	date_of_birth, role, is_active, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*model.User, error) {
	u := &model.User{}
	err := r.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.DateOfBirth, &u.Role, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

// CreateUser inserts the user, plus an empty specialist profile for specialist signups.
func (s *Store) CreateUser(ctx context.Context, u *model.User, specialistProfileID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name, phone_number, date_of_birth, role)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.DateOfBirth, u.Role,
	)
	if err != nil {
		return mapErr(err)
	}

	if u.Role == model.RoleSpecialist {
		_, err = tx.Exec(ctx,
			`INSERT INTO specialist_profiles (id, user_id, phone) VALUES ($1,$2,$3)`,
			specialistProfileID, u.ID, u.Phone,
		)
		if err != nil {
			return mapErr(err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (s *Store) TouchLastLogin(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

func (s *Store) SetPassword(ctx context.Context, userID, hash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, userID)
	return err
}

// EnsureAdmin creates the bootstrap admin if no user holds that email.
func (s *Store) EnsureAdmin(ctx context.Context, u *model.User) (created bool, err error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, role)
		 VALUES ($1,$2,$3,$4,'admin') ON CONFLICT (email) DO NOTHING`,
		u.ID, u.Email, u.PasswordHash, u.FirstName,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type UserFilter struct {
	Search string
	Role   string
}

func (s *Store) ListUsers(ctx context.Context, f UserFilter, p Page) ([]model.User, int, error) {
	where := `WHERE 1=1`
	var args []any
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(` AND (email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)`,
			len(args), len(args), len(args))
	}
	if f.Role != "" {
		args = append(args, f.Role)
		where += fmt.Sprintf(` AND role = $%d`, len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+userCols+` FROM users `+where+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

// AnonymizeUser scrubs personal data and deactivates the account.
func (s *Store) AnonymizeUser(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	anon := fmt.Sprintf("deleted-%s@anonymized.invalid", userID)
	_, err = tx.Exec(ctx,
		`UPDATE users SET email = $1, first_name = 'Anonymous', last_name = '', phone_number = '',
		        date_of_birth = NULL, is_active = false, updated_at = NOW()
		 WHERE id = $2`, anon, userID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO profiles (user_id, is_anonymized) VALUES ($1, true)
		 ON CONFLICT (user_id) DO UPDATE SET gender = '', bio = '', is_anonymized = true, updated_at = NOW()`,
		userID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
