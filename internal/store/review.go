package store

import (
	"context"

	"nganiriza-api/internal/model"
)

// CreateReview inserts the review and refreshes the specialist's rating aggregate.
func (s *Store) CreateReview(ctx context.Context, r *model.Review) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO reviews (id, specialist_id, user_id, rating, comment)
		 VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		r.ID, r.SpecialistID, r.UserID, r.Rating, r.Comment,
	).Scan(&r.CreatedAt)
	if err != nil {
		return mapErr(err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE specialist_profiles sp
		 SET average_rating = agg.avg, total_reviews = agg.n, updated_at = NOW()
		 FROM (SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS avg, COUNT(*) AS n
		       FROM reviews WHERE specialist_id = $1) agg
		 WHERE sp.id = $1`, r.SpecialistID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListReviews(ctx context.Context, specialistID string, p Page) ([]model.Review, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE specialist_id = $1`, specialistID).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.specialist_id, r.user_id, u.first_name, r.rating, r.comment, r.created_at
		 FROM reviews r JOIN users u ON u.id = r.user_id
		 WHERE r.specialist_id = $1
		 ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, specialistID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.SpecialistID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
