package repository

import (
	"context"

	"github.com/google/uuid"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
)

type ClockEventRepository struct {
	DB *db.Postgres
}

const clockEventColumns = `id, user_id, business_id, terminal_id, type, method, occurred_at, location_id, ip_address, created_at`

func (r ClockEventRepository) Insert(ctx context.Context, ev domain.ClockEvent) error {
	_, err := r.DB.Conn(ctx).Exec(ctx, `
		INSERT INTO clock_events (id, user_id, business_id, terminal_id, type, method, occurred_at, location_id, ip_address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
	`, ev.ID, ev.UserID, ev.BusinessID, ev.TerminalID, string(ev.Type), string(ev.Method), ev.Timestamp, ev.LocationID, ev.IPAddress)
	return err
}

func (r ClockEventRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ClockEvent, error) {
	row := r.DB.Conn(ctx).QueryRow(ctx, `SELECT `+clockEventColumns+` FROM clock_events WHERE id=$1`, id)
	ev, err := scanClockEvent(row)
	if err != nil {
		return nil, notFound(err)
	}
	return ev, nil
}

func (r ClockEventRepository) LatestForUser(ctx context.Context, userID int64) (*domain.ClockEvent, error) {
	row := r.DB.Conn(ctx).QueryRow(ctx, `
		SELECT `+clockEventColumns+`
		FROM clock_events
		WHERE user_id=$1
		ORDER BY occurred_at DESC
		LIMIT 1
	`, userID)
	ev, err := scanClockEvent(row)
	if err != nil {
		return nil, notFound(err)
	}
	return ev, nil
}

func scanClockEvent(row rowScanner) (*domain.ClockEvent, error) {
	var (
		ev          domain.ClockEvent
		typ, method string
	)
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.BusinessID, &ev.TerminalID, &typ, &method, &ev.Timestamp, &ev.LocationID, &ev.IPAddress, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Type = domain.ClockEventType(typ)
	ev.Method = domain.ClockMethod(method)
	return &ev, nil
}
