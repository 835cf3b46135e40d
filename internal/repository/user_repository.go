package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
)

type UserRepository struct {
	DB *db.Postgres
}

func (r UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.DB.Conn(ctx).QueryRow(ctx, `
		SELECT id, business_id, name, email, role, pin_hash, active
		FROM users
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.BusinessID, &u.Name, &u.Email, &role, &u.PinHash, &u.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = domain.UserRole(role)
	return &u, nil
}

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = domain.ErrNotFound

// IsDuplicate detects unique constraint violation.
func IsDuplicate(err error) bool {
	return db.IsUniqueViolation(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
