package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
)

type BreakRepository struct {
	DB *db.Postgres
}

const breakColumns = `id, shift_id, user_id, type, is_paid, started_at, ended_at`

// Insert relies on breaks_one_open_per_shift to reject a second open break.
func (r BreakRepository) Insert(ctx context.Context, b domain.Break) error {
	_, err := r.DB.Conn(ctx).Exec(ctx, `
		INSERT INTO breaks (id, shift_id, user_id, type, is_paid, started_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, b.ID, b.ShiftID, b.UserID, string(b.Type), b.IsPaid, b.StartedAt)
	if IsDuplicate(err) {
		return domain.ErrConflict
	}
	return err
}

func (r BreakRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Break, error) {
	return r.getOne(ctx, `SELECT `+breakColumns+` FROM breaks WHERE id=$1`, id)
}

func (r BreakRepository) GetOpenByShift(ctx context.Context, shiftID uuid.UUID) (*domain.Break, error) {
	return r.getOne(ctx, `SELECT `+breakColumns+` FROM breaks WHERE shift_id=$1 AND ended_at IS NULL`, shiftID)
}

func (r BreakRepository) End(ctx context.Context, id uuid.UUID, endedAt time.Time) (*domain.Break, error) {
	return r.getOne(ctx, `
		UPDATE breaks SET ended_at=$2
		WHERE id=$1 AND ended_at IS NULL
		RETURNING `+breakColumns, id, endedAt)
}

func (r BreakRepository) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]domain.Break, error) {
	rows, err := r.DB.Conn(ctx).Query(ctx, `
		SELECT `+breakColumns+`
		FROM breaks
		WHERE shift_id=$1
		ORDER BY started_at ASC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	return items, rows.Err()
}

func (r BreakRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Break, error) {
	b, err := scanBreak(r.DB.Conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func scanBreak(row rowScanner) (*domain.Break, error) {
	var (
		b   domain.Break
		typ string
	)
	if err := row.Scan(&b.ID, &b.ShiftID, &b.UserID, &typ, &b.IsPaid, &b.StartedAt, &b.EndedAt); err != nil {
		return nil, err
	}
	b.Type = domain.BreakType(typ)
	return &b, nil
}
