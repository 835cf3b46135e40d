package repository

import (
	"context"
	"time"

	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/domain"
)

// AuditLogRepository is the Postgres audit sink. Records written inside a
// transaction commit or roll back together with the transition they describe.
type AuditLogRepository struct {
	DB *db.Postgres
}

func (r AuditLogRepository) Record(ctx context.Context, rec domain.AuditRecord) error {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}
	_, err := r.DB.Conn(ctx).Exec(ctx, `
		INSERT INTO audit_logs (business_id, actor_id, action, entity, entity_id, metadata, occurred_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
	`, rec.BusinessID, rec.ActorID, rec.Action, rec.Entity, rec.EntityID, metadata, rec.OccurredAt)
	return err
}

func (r AuditLogRepository) List(ctx context.Context, businessID int64, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Conn(ctx).Query(ctx, `
		SELECT id, business_id, actor_id, action, entity, entity_id, metadata, occurred_at
		FROM audit_logs
		WHERE business_id=$1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var l domain.AuditRecord
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.ActorID, &l.Action, &l.Entity, &l.EntityID, &l.Metadata, &l.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
