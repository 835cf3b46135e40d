package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
)

type ScheduleRepository struct {
	DB *db.Postgres
}

const scheduleColumns = `id, staff_id, business_id, start_time, end_time, assigned_register, notes, created_at, updated_at`

func (r ScheduleRepository) LockStaff(ctx context.Context, staffID int64) error {
	_, err := r.DB.Conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, staffID)
	return err
}

// Insert maps the schedules_no_overlap exclusion constraint to ErrConflict.
func (r ScheduleRepository) Insert(ctx context.Context, s domain.Schedule) error {
	_, err := r.DB.Conn(ctx).Exec(ctx, `
		INSERT INTO schedules (id, staff_id, business_id, start_time, end_time, assigned_register, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now(), now())
	`, s.ID, s.StaffID, s.BusinessID, s.StartTime, s.EndTime, s.AssignedRegister, s.Notes)
	if db.IsExclusionViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r ScheduleRepository) Update(ctx context.Context, s domain.Schedule) (*domain.Schedule, error) {
	out, err := scanSchedule(r.DB.Conn(ctx).QueryRow(ctx, `
		UPDATE schedules
		SET staff_id=$2, business_id=$3, start_time=$4, end_time=$5, assigned_register=$6, notes=$7, updated_at=now()
		WHERE id=$1
		RETURNING `+scheduleColumns,
		s.ID, s.StaffID, s.BusinessID, s.StartTime, s.EndTime, s.AssignedRegister, s.Notes))
	if db.IsExclusionViolation(err) {
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, notFound(err)
	}
	return out, nil
}

func (r ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Conn(ctx).Exec(ctx, `DELETE FROM schedules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r ScheduleRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	s, err := scanSchedule(r.DB.Conn(ctx).QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListForStaff returns schedules of one staff member whose window intersects [from, to).
func (r ScheduleRepository) ListForStaff(ctx context.Context, staffID int64, from, to time.Time) ([]domain.Schedule, error) {
	return r.list(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE staff_id=$1 AND end_time > $2 AND start_time < $3
		ORDER BY start_time ASC
	`, staffID, from, to)
}

func (r ScheduleRepository) ListByBusiness(ctx context.Context, businessID int64, from, to time.Time) ([]domain.Schedule, error) {
	return r.list(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE business_id=$1 AND end_time > $2 AND start_time < $3
		ORDER BY start_time ASC, staff_id ASC
	`, businessID, from, to)
}

func (r ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.DB.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	if err := row.Scan(&s.ID, &s.StaffID, &s.BusinessID, &s.StartTime, &s.EndTime, &s.AssignedRegister, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
