package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
)

type TimeCorrectionRepository struct {
	DB *db.Postgres
}

const correctionColumns = `id, business_id, clock_event_id, shift_id, correction_type, original_time, corrected_time,
	reason, requested_by, status, approved_by, processed_at, created_at`

func (r TimeCorrectionRepository) Insert(ctx context.Context, c domain.TimeCorrection) error {
	_, err := r.DB.Conn(ctx).Exec(ctx, `
		INSERT INTO time_corrections
		(id, business_id, clock_event_id, shift_id, correction_type, original_time, corrected_time, reason, requested_by, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, c.ID, c.BusinessID, c.ClockEventID, c.ShiftID, string(c.CorrectionType), c.OriginalTime, c.CorrectedTime,
		c.Reason, c.RequestedBy, string(c.Status), c.CreatedAt)
	return err
}

func (r TimeCorrectionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.TimeCorrection, error) {
	c, err := scanCorrection(r.DB.Conn(ctx).QueryRow(ctx, `SELECT `+correctionColumns+` FROM time_corrections WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func (r TimeCorrectionRepository) ListPending(ctx context.Context, businessID int64) ([]domain.TimeCorrection, error) {
	rows, err := r.DB.Conn(ctx).Query(ctx, `
		SELECT `+correctionColumns+`
		FROM time_corrections
		WHERE business_id=$1 AND status='pending'
		ORDER BY created_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.TimeCorrection
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

func (r TimeCorrectionRepository) Resolve(ctx context.Context, id uuid.UUID, status domain.CorrectionStatus, approvedBy int64, at time.Time) (*domain.TimeCorrection, error) {
	c, err := scanCorrection(r.DB.Conn(ctx).QueryRow(ctx, `
		UPDATE time_corrections
		SET status=$2, approved_by=$3, processed_at=$4
		WHERE id=$1 AND status='pending'
		RETURNING `+correctionColumns, id, string(status), approvedBy, at))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

func scanCorrection(row rowScanner) (*domain.TimeCorrection, error) {
	var (
		c           domain.TimeCorrection
		typ, status string
	)
	if err := row.Scan(
		&c.ID,
		&c.BusinessID,
		&c.ClockEventID,
		&c.ShiftID,
		&typ,
		&c.OriginalTime,
		&c.CorrectedTime,
		&c.Reason,
		&c.RequestedBy,
		&status,
		&c.ApprovedBy,
		&c.ProcessedAt,
		&c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.CorrectionType = domain.CorrectionType(typ)
	c.Status = domain.CorrectionStatus(status)
	return &c, nil
}
