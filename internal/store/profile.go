package store

import (
	"context"

	"nganiriza-api/internal/model"
)

// ProfileFor returns the user's profile, creating a default one on first access.
func (s *Store) ProfileFor(ctx context.Context, userID string) (*model.Profile, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, mapErr(err)
	}

	p := &model.Profile{}
	err = s.pool.QueryRow(ctx,
		`SELECT user_id, preferred_language, gender, bio, consent_data_processing, is_anonymized, created_at, updated_at
		 FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.PreferredLanguage, &p.Gender, &p.Bio, &p.ConsentData, &p.IsAnonymized, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *model.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET preferred_language = $1, gender = $2, bio = $3,
		        consent_data_processing = $4, updated_at = NOW()
		 WHERE user_id = $5`,
		p.PreferredLanguage, p.Gender, p.Bio, p.ConsentData, p.UserID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserNames edits the name and phone fields carried on the profile form.
func (s *Store) UpdateUserNames(ctx context.Context, userID, first, last, phone string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET first_name = $1, last_name = $2, phone_number = $3, updated_at = NOW() WHERE id = $4`,
		first, last, phone, userID)
	return err
}
