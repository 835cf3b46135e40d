package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
)

// TimeShiftRepository stores attendance periods, the day-level check-in that
// groups a user's POS shifts.
type TimeShiftRepository struct {
	DB *db.Postgres
}

const timeShiftColumns = `id, user_id, business_id, clock_in_at, clock_out_at, status, created_at`

func (r TimeShiftRepository) Insert(ctx context.Context, ts domain.TimeShift) error {
	_, err := r.DB.Conn(ctx).Exec(ctx, `
		INSERT INTO time_shifts (id, user_id, business_id, clock_in_at, status, created_at)
		VALUES ($1,$2,$3,$4,$5, now())
	`, ts.ID, ts.UserID, ts.BusinessID, ts.ClockInAt, string(ts.Status))
	if IsDuplicate(err) {
		return domain.ErrConflict
	}
	return err
}

func (r TimeShiftRepository) GetOpenByUser(ctx context.Context, userID int64) (*domain.TimeShift, error) {
	ts, err := scanTimeShift(r.DB.Conn(ctx).QueryRow(ctx, `
		SELECT `+timeShiftColumns+` FROM time_shifts WHERE user_id=$1 AND status='open'
	`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return ts, nil
}

func (r TimeShiftRepository) ListOpenByBusiness(ctx context.Context, businessID int64) ([]domain.TimeShift, error) {
	rows, err := r.DB.Conn(ctx).Query(ctx, `
		SELECT `+timeShiftColumns+`
		FROM time_shifts
		WHERE business_id=$1 AND status='open'
		ORDER BY clock_in_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.TimeShift
	for rows.Next() {
		ts, err := scanTimeShift(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *ts)
	}
	return items, rows.Err()
}

func (r TimeShiftRepository) Close(ctx context.Context, id uuid.UUID, at time.Time) (*domain.TimeShift, error) {
	ts, err := scanTimeShift(r.DB.Conn(ctx).QueryRow(ctx, `
		UPDATE time_shifts SET clock_out_at=$2, status='closed'
		WHERE id=$1 AND status='open'
		RETURNING `+timeShiftColumns, id, at))
	if err != nil {
		return nil, notFound(err)
	}
	return ts, nil
}

func scanTimeShift(row rowScanner) (*domain.TimeShift, error) {
	var (
		ts     domain.TimeShift
		status string
	)
	if err := row.Scan(&ts.ID, &ts.UserID, &ts.BusinessID, &ts.ClockInAt, &ts.ClockOutAt, &status, &ts.CreatedAt); err != nil {
		return nil, err
	}
	ts.Status = domain.TimeShiftStatus(status)
	return &ts, nil
}
