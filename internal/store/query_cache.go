package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"nganiriza-api/internal/model"
)

// LookupQueryCache returns a cached response and records the hit.
func (s *Store) LookupQueryCache(ctx context.Context, hash string) (string, bool, error) {
	var resp string
	err := s.pool.QueryRow(ctx,
		`UPDATE query_cache SET accessed_count = accessed_count + 1, last_accessed = NOW()
		 WHERE query_hash = $1 RETURNING response`, hash,
	).Scan(&resp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return resp, true, nil
}

func (s *Store) SaveQueryCache(ctx context.Context, e *model.QueryCache) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO query_cache (query_hash, query_text, response, context)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (query_hash) DO UPDATE SET response = EXCLUDED.response, last_accessed = NOW()`,
		e.QueryHash, e.QueryText, e.Response, e.Context,
	)
	return err
}
