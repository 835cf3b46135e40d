package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

type ShiftRepository struct {
	DB *db.Postgres
}

const shiftColumns = `id, user_id, business_id, clock_in_id, clock_out_id, status, started_at, ended_at,
	total_hours, regular_hours, overtime_hours, time_shift_id, created_at, updated_at`

// Insert relies on shifts_one_active_per_user to reject a second active shift.
func (r ShiftRepository) Insert(ctx context.Context, s domain.Shift) error {
	_, err := r.DB.Conn(ctx).Exec(ctx, `
		INSERT INTO shifts (id, user_id, business_id, clock_in_id, status, started_at, time_shift_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now(), now())
	`, s.ID, s.UserID, s.BusinessID, s.ClockInID, string(s.Status), s.StartedAt, s.TimeShiftID)
	if IsDuplicate(err) {
		return domain.ErrConflict
	}
	return err
}

func (r ShiftRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Shift, error) {
	return r.getOne(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id=$1`, id)
}

func (r ShiftRepository) GetActiveByUser(ctx context.Context, userID int64) (*domain.Shift, error) {
	return r.getOne(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE user_id=$1 AND status='active'`, userID)
}

func (r ShiftRepository) GetByClockEvent(ctx context.Context, eventID uuid.UUID) (*domain.Shift, error) {
	return r.getOne(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE clock_in_id=$1 OR clock_out_id=$1`, eventID)
}

func (r ShiftRepository) Close(ctx context.Context, p ports.CloseShiftParams) (*domain.Shift, error) {
	return r.getOne(ctx, `
		UPDATE shifts
		SET clock_out_id=$2, status=$3, ended_at=$4, total_hours=$5, regular_hours=$6, overtime_hours=$7, updated_at=now()
		WHERE id=$1 AND status='active'
		RETURNING `+shiftColumns,
		p.ID, p.ClockOutID, string(p.Status), p.EndedAt, p.TotalHours, p.RegularHours, p.OvertimeHours)
}

func (r ShiftRepository) UpdateTimes(ctx context.Context, p ports.UpdateShiftTimesParams) (*domain.Shift, error) {
	return r.getOne(ctx, `
		UPDATE shifts
		SET started_at=$2, ended_at=$3, total_hours=$4, regular_hours=$5, overtime_hours=$6, updated_at=now()
		WHERE id=$1
		RETURNING `+shiftColumns,
		p.ID, p.StartedAt, p.EndedAt, p.TotalHours, p.RegularHours, p.OvertimeHours)
}

func (r ShiftRepository) ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Shift, error) {
	return r.list(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE status='active' AND started_at < $1
		ORDER BY business_id, started_at
	`, cutoff)
}

func (r ShiftRepository) ListByTimeShift(ctx context.Context, timeShiftID uuid.UUID) ([]domain.Shift, error) {
	return r.list(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE time_shift_id=$1
		ORDER BY started_at
	`, timeShiftID)
}

func (r ShiftRepository) ListEndedBetween(ctx context.Context, businessID int64, from, to time.Time) ([]domain.Shift, error) {
	return r.list(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE business_id=$1 AND status <> 'active' AND ended_at >= $2 AND ended_at < $3
		ORDER BY user_id, started_at
	`, businessID, from, to)
}

func (r ShiftRepository) ListOverlapping(ctx context.Context, userID int64, from time.Time, to *time.Time) ([]domain.Shift, error) {
	return r.list(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE user_id=$1
		  AND (ended_at IS NULL OR ended_at > $2)
		  AND ($3::timestamptz IS NULL OR started_at < $3)
		ORDER BY started_at
	`, userID, from, to)
}

func (r ShiftRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Shift, error) {
	s, err := scanShift(r.DB.Conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r ShiftRepository) list(ctx context.Context, query string, args ...any) ([]domain.Shift, error) {
	rows, err := r.DB.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

func scanShift(row rowScanner) (*domain.Shift, error) {
	var (
		s      domain.Shift
		status string
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.BusinessID,
		&s.ClockInID,
		&s.ClockOutID,
		&status,
		&s.StartedAt,
		&s.EndedAt,
		&s.TotalHours,
		&s.RegularHours,
		&s.OvertimeHours,
		&s.TimeShiftID,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = domain.ShiftStatus(status)
	return &s, nil
}
