package store

import (
	"context"
	"fmt"

	"nganiriza-api/internal/model"
)

const articleCols = `id, title, summary, body, locale, tags, is_published, created_by, updated_by, created_at, updated_at`

func scanArticle(r rowScanner) (*model.Article, error) {
	a := &model.Article{}
	err := r.Scan(&a.ID, &a.Title, &a.Summary, &a.Body, &a.Locale, &a.Tags, &a.IsPublished,
		&a.CreatedBy, &a.UpdatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

type ArticleFilter struct {
	Locale        string
	Tag           string
	PublishedOnly bool
}

func (s *Store) ListArticles(ctx context.Context, f ArticleFilter, p Page) ([]model.Article, int, error) {
	where := `WHERE 1=1`
	var args []any
	if f.PublishedOnly {
		where += ` AND is_published`
	}
	if f.Locale != "" {
		args = append(args, f.Locale)
		where += fmt.Sprintf(` AND locale = $%d`, len(args))
	}
	if f.Tag != "" {
		args = append(args, f.Tag)
		where += fmt.Sprintf(` AND $%d = ANY(tags)`, len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+articleCols+` FROM articles `+where+
			fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (s *Store) Article(ctx context.Context, id string) (*model.Article, error) {
	return scanArticle(s.pool.QueryRow(ctx, `SELECT `+articleCols+` FROM articles WHERE id = $1`, id))
}

func (s *Store) CreateArticle(ctx context.Context, a *model.Article) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO articles (id, title, summary, body, locale, tags, is_published, created_by, updated_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8) RETURNING created_at, updated_at`,
		a.ID, a.Title, a.Summary, a.Body, a.Locale, nonNil(a.Tags), a.IsPublished, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) UpdateArticle(ctx context.Context, a *model.Article) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE articles SET title=$1, summary=$2, body=$3, locale=$4, tags=$5, is_published=$6,
		        updated_by=$7, updated_at=NOW()
		 WHERE id=$8 RETURNING updated_at`,
		a.Title, a.Summary, a.Body, a.Locale, nonNil(a.Tags), a.IsPublished, a.UpdatedBy, a.ID,
	).Scan(&a.UpdatedAt)
	return mapErr(err)
}

func (s *Store) DeleteArticle(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
