package store

import (
	"context"
	"fmt"
	"time"

	"nganiriza-api/internal/model"
)

const apptCols = `a.id, a.user_id, a.specialist_id,
	trim(u.first_name || ' ' || u.last_name), trim(su.first_name || ' ' || su.last_name),
	a.start_time, a.end_time, a.reason, a.status, a.cancellation_reason, a.created_at, a.updated_at`

const apptFrom = ` FROM appointments a
	JOIN users u ON u.id = a.user_id
	JOIN specialist_profiles sp ON sp.id = a.specialist_id
	JOIN users su ON su.id = sp.user_id `

func scanAppointment(r rowScanner) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := r.Scan(&a.ID, &a.UserID, &a.SpecialistID, &a.UserName, &a.SpecialistName,
		&a.StartTime, &a.EndTime, &a.Reason, &a.Status, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

// CreateAppointment inserts a booking. The exclusion constraint turns a race past
// HasOverlap into ErrConflict.
func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO appointments (id, user_id, specialist_id, start_time, end_time, reason, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.SpecialistID, a.StartTime, a.EndTime, a.Reason, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapErr(err)
}

// HasOverlap reports whether the specialist already holds a pending or confirmed
// booking intersecting [start, end).
func (s *Store) HasOverlap(ctx context.Context, specialistID string, start, end time.Time, excludeID string) (bool, error) {
	q := `SELECT EXISTS(
		SELECT 1 FROM appointments
		WHERE specialist_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2`

	args := []any{specialistID, start, end}

	if excludeID != "" {
		q += ` AND id != $4`
		args = append(args, excludeID)
	}
	q += `)`

	var exists bool
	err := s.pool.QueryRow(ctx, q, args...).Scan(&exists)
	return exists, err
}

type AppointmentFilter struct {
	UserID       string
	SpecialistID string
	Status       string
}

func (s *Store) ListAppointments(ctx context.Context, f AppointmentFilter, p Page) ([]model.Appointment, int, error) {
	where := `WHERE 1=1`
	var args []any
	if f.UserID != "" {
		args = append(args, f.UserID)
		where += fmt.Sprintf(` AND a.user_id = $%d`, len(args))
	}
	if f.SpecialistID != "" {
		args = append(args, f.SpecialistID)
		where += fmt.Sprintf(` AND a.specialist_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND a.status = $%d`, len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*)`+apptFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, p.Limit, p.Offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+apptCols+apptFrom+where+
			fmt.Sprintf(` ORDER BY a.start_time DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}

func (s *Store) Appointment(ctx context.Context, id string) (*model.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx, `SELECT `+apptCols+apptFrom+`WHERE a.id = $1`, id))
}

func (s *Store) SetAppointmentStatus(ctx context.Context, id, status, cancellationReason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status = $1, cancellation_reason = $2, updated_at = NOW() WHERE id = $3`,
		status, cancellationReason, id,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasCompletedAppointment gates reviews.
func (s *Store) HasCompletedAppointment(ctx context.Context, userID, specialistID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointments
		 WHERE user_id = $1 AND specialist_id = $2 AND status = 'completed')`,
		userID, specialistID,
	).Scan(&ok)
	return ok, mapErr(err)
}
