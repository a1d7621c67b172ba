package store

import (
	"context"
	"fmt"

	"nganiriza-api/internal/model"
)

const specialistCols = `sp.id, sp.user_id, trim(u.first_name || ' ' || u.last_name), u.email,
	sp.specialty, sp.clinic_name, sp.bio, sp.years_experience, sp.languages, sp.phone, sp.location,
	sp.is_verified, sp.profile_completed, sp.average_rating, sp.total_reviews, sp.rejection_reason,
	sp.created_at, sp.updated_at`

const specialistFrom = ` FROM specialist_profiles sp JOIN users u ON u.id = sp.user_id `

func scanSpecialist(r rowScanner) (*model.SpecialistProfile, error) {
	p := &model.SpecialistProfile{}
	err := r.Scan(&p.ID, &p.UserID, &p.Name, &p.Email,
		&p.Specialty, &p.ClinicName, &p.Bio, &p.YearsExperience, &p.Languages, &p.Phone, &p.Location,
		&p.IsVerified, &p.ProfileCompleted, &p.AverageRating, &p.TotalReviews, &p.RejectionReason,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func (s *Store) SpecialistByUser(ctx context.Context, userID string) (*model.SpecialistProfile, error) {
	return scanSpecialist(s.pool.QueryRow(ctx,
		`SELECT `+specialistCols+specialistFrom+`WHERE sp.user_id = $1`, userID))
}

func (s *Store) Specialist(ctx context.Context, id string) (*model.SpecialistProfile, error) {
	return scanSpecialist(s.pool.QueryRow(ctx,
		`SELECT `+specialistCols+specialistFrom+`WHERE sp.id = $1`, id))
}

func (s *Store) UpdateSpecialist(ctx context.Context, p *model.SpecialistProfile) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE specialist_profiles
		 SET specialty=$1, clinic_name=$2, bio=$3, years_experience=$4, languages=$5, phone=$6,
		     location=$7, profile_completed=$8, updated_at=NOW()
		 WHERE id=$9 RETURNING updated_at`,
		p.Specialty, p.ClinicName, p.Bio, p.YearsExperience, nonNil(p.Languages), p.Phone,
		p.Location, p.ProfileCompleted, p.ID,
	).Scan(&p.UpdatedAt)
	return mapErr(err)
}

type SpecialistFilter struct {
	Specialty string
	Search    string
	// Pending lists unverified profiles instead of the public directory.
	Pending bool
}

func (s *Store) ListSpecialists(ctx context.Context, f SpecialistFilter, p Page) ([]model.SpecialistProfile, int, error) {
	where := `WHERE sp.is_verified AND sp.profile_completed AND u.is_active`
	order := ` ORDER BY sp.average_rating DESC, sp.created_at DESC`
	if f.Pending {
		where = `WHERE NOT sp.is_verified`
		order = ` ORDER BY sp.created_at`
	}
	var args []any
	if f.Specialty != "" {
		args = append(args, f.Specialty)
		where += fmt.Sprintf(` AND sp.specialty ILIKE $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where += fmt.Sprintf(` AND (u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR sp.specialty ILIKE $%d OR sp.clinic_name ILIKE $%d)`, n, n, n, n)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*)`+specialistFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+specialistCols+specialistFrom+where+order+
			fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.SpecialistProfile
	for rows.Next() {
		sp, err := scanSpecialist(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sp)
	}
	return out, total, rows.Err()
}

// SetSpecialistVerification approves or rejects a specialist.
func (s *Store) SetSpecialistVerification(ctx context.Context, id string, verified bool, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE specialist_profiles SET is_verified = $1, rejection_reason = $2, updated_at = NOW() WHERE id = $3`,
		verified, reason, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SpecialistStats(ctx context.Context, sp *model.SpecialistProfile) (*model.DashboardStats, error) {
	st := &model.DashboardStats{AverageRating: sp.AverageRating, TotalReviews: sp.TotalReviews}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'confirmed'),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COUNT(*) FILTER (WHERE status = 'cancelled')
		 FROM appointments WHERE specialist_id = $1`, sp.ID,
	).Scan(&st.TotalAppointments, &st.PendingAppointments, &st.ConfirmedAppointments,
		&st.CompletedAppointments, &st.CancelledAppointments)
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM specialist_messages
		 WHERE specialist_id = $1 AND sender_role = 'user' AND NOT is_read`, sp.ID,
	).Scan(&st.UnreadMessages)
	if err != nil {
		return nil, err
	}
	return st, nil
}
