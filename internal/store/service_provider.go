package store

import (
	"context"

	"nganiriza-api/internal/model"
)

const providerCols = `id, name, description, phone, email, website, address, province, district, sector,
	latitude, longitude, services, verified, created_at, updated_at`

func scanProvider(r rowScanner) (*model.ServiceProvider, error) {
	p := &model.ServiceProvider{}
	err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Phone, &p.Email, &p.Website, &p.Address,
		&p.Province, &p.District, &p.Sector, &p.Latitude, &p.Longitude, &p.Services, &p.Verified,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (s *Store) ListServiceProviders(ctx context.Context, verifiedOnly bool, p Page) ([]model.ServiceProvider, int, error) {
	where := ``
	if verifiedOnly {
		where = ` WHERE verified`
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_providers`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+providerCols+` FROM service_providers`+where+` ORDER BY name LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ServiceProvider
	for rows.Next() {
		sp, err := scanProvider(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sp)
	}
	return out, total, rows.Err()
}

func (s *Store) ServiceProvider(ctx context.Context, id string) (*model.ServiceProvider, error) {
	return scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerCols+` FROM service_providers WHERE id = $1`, id))
}

func (s *Store) CreateServiceProvider(ctx context.Context, p *model.ServiceProvider) error {
	return mapErr(s.pool.QueryRow(ctx,
		`INSERT INTO service_providers (id, name, description, phone, email, website, address, province,
		                                district, sector, latitude, longitude, services, verified)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Phone, p.Email, p.Website, p.Address, p.Province,
		p.District, p.Sector, p.Latitude, p.Longitude, nonNil(p.Services), p.Verified,
	).Scan(&p.CreatedAt, &p.UpdatedAt))
}

func (s *Store) UpdateServiceProvider(ctx context.Context, p *model.ServiceProvider) error {
	return mapErr(s.pool.QueryRow(ctx,
		`UPDATE service_providers SET name=$1, description=$2, phone=$3, email=$4, website=$5, address=$6,
		        province=$7, district=$8, sector=$9, latitude=$10, longitude=$11, services=$12, verified=$13,
		        updated_at=NOW()
		 WHERE id=$14 RETURNING updated_at`,
		p.Name, p.Description, p.Phone, p.Email, p.Website, p.Address, p.Province, p.District, p.Sector,
		p.Latitude, p.Longitude, nonNil(p.Services), p.Verified, p.ID,
	).Scan(&p.UpdatedAt))
}

func (s *Store) DeleteServiceProvider(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM service_providers WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
