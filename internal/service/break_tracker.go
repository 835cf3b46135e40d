package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

// BreakTracker manages breaks nested inside an active shift.
type BreakTracker struct {
	Breaks ports.BreakRepository
	Shifts ports.ShiftRepository
	Tx     ports.TxManager
	Audit  ports.AuditSink
	Now    func() time.Time
}

type StartBreakInput struct {
	ShiftID uuid.UUID
	UserID  int64
	// Type defaults to rest.
	Type domain.BreakType
	// IsPaid defaults to Type.DefaultPaid().
	IsPaid *bool
}

// Start opens a break. The shift must be active and belong to the user.
func (t BreakTracker) Start(ctx context.Context, in StartBreakInput) (*domain.Break, error) {
	if in.Type == "" {
		in.Type = domain.BreakRest
	}
	if !in.Type.Valid() {
		return nil, domain.Validationf("unknown break type %q", in.Type)
	}
	paid := in.Type.DefaultPaid()
	if in.IsPaid != nil {
		paid = *in.IsPaid
	}

	var out domain.Break
	err := withinTx(ctx, t.Tx, func(ctx context.Context) error {
		shift, err := t.Shifts.Get(ctx, in.ShiftID)
		if err != nil {
			return fmt.Errorf("shift %s: %w", in.ShiftID, err)
		}
		if shift.UserID != in.UserID {
			return fmt.Errorf("shift %s: %w", in.ShiftID, domain.ErrNotFound)
		}
		if !shift.Active() {
			return fmt.Errorf("shift %s is %s: %w", shift.ID, shift.Status, domain.ErrInvalidState)
		}
		now := clock(t.Now)
		out = domain.Break{
			ID:        uuid.New(),
			ShiftID:   shift.ID,
			UserID:    in.UserID,
			Type:      in.Type,
			IsPaid:    paid,
			StartedAt: now,
		}
		if err := t.Breaks.Insert(ctx, out); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("shift %s already has an open break: %w", shift.ID, err)
			}
			return fmt.Errorf("insert break: %w", err)
		}
		return record(ctx, t.Audit, auditEntry{
			BusinessID: shift.BusinessID,
			ActorID:    int64Ptr(in.UserID),
			Action:     ActionBreakStarted,
			Entity:     "break",
			EntityID:   out.ID.String(),
			At:         now,
			Metadata:   map[string]any{"shift_id": shift.ID.String(), "type": string(out.Type), "is_paid": out.IsPaid},
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// End closes a break at the current time.
func (t BreakTracker) End(ctx context.Context, breakID uuid.UUID) (*domain.Break, error) {
	var out *domain.Break
	err := withinTx(ctx, t.Tx, func(ctx context.Context) error {
		b, err := t.Breaks.Get(ctx, breakID)
		if err != nil {
			return fmt.Errorf("break %s: %w", breakID, err)
		}
		if !b.Open() {
			return fmt.Errorf("break %s already ended: %w", breakID, domain.ErrInvalidState)
		}
		out, err = t.end(ctx, *b, clock(t.Now), int64Ptr(b.UserID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EndAs ends a break on behalf of actor. Staff may only end their own breaks;
// managers may end any break in their business.
func (t BreakTracker) EndAs(ctx context.Context, actor domain.Actor, breakID uuid.UUID) (*domain.Break, error) {
	b, err := t.Breaks.Get(ctx, breakID)
	if err != nil {
		return nil, fmt.Errorf("break %s: %w", breakID, err)
	}
	if b.UserID != actor.ID {
		if !actor.Role.IsManager() {
			return nil, fmt.Errorf("break %s: %w", breakID, domain.ErrNotFound)
		}
		shift, err := t.Shifts.Get(ctx, b.ShiftID)
		if err != nil {
			return nil, fmt.Errorf("shift %s: %w", b.ShiftID, err)
		}
		if shift.BusinessID != actor.BusinessID {
			return nil, fmt.Errorf("break %s: %w", breakID, domain.ErrNotFound)
		}
	}
	return t.End(ctx, breakID)
}

func (t BreakTracker) GetOpenBreak(ctx context.Context, shiftID uuid.UUID) (*domain.Break, error) {
	b, err := t.Breaks.GetOpenByShift(ctx, shiftID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open break for shift %s: %w", shiftID, err)
	}
	return b, nil
}

func (t BreakTracker) ListForShift(ctx context.Context, shiftID uuid.UUID) ([]domain.Break, error) {
	breaks, err := t.Breaks.ListByShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("breaks for shift %s: %w", shiftID, err)
	}
	return breaks, nil
}

var errBreakEnded = fmt.Errorf("break already ended: %w", domain.ErrInvalidState)

// EndOpenForShift ends the shift's open break at `at`, if any. It is called by
// every shift close path so no break outlives its shift. A break ended by a
// concurrent transaction counts as nothing left to end.
func (t BreakTracker) EndOpenForShift(ctx context.Context, shiftID uuid.UUID, at time.Time, actorID *int64) (*domain.Break, error) {
	open, err := t.GetOpenBreak(ctx, shiftID)
	if err != nil || open == nil {
		return nil, err
	}
	// A break started after the close instant is clamped to zero length.
	if at.Before(open.StartedAt) {
		at = open.StartedAt
	}
	ended, err := t.end(ctx, *open, at, actorID)
	if errors.Is(err, errBreakEnded) {
		return nil, nil
	}
	return ended, err
}

func (t BreakTracker) end(ctx context.Context, b domain.Break, at time.Time, actorID *int64) (*domain.Break, error) {
	ended, err := t.Breaks.End(ctx, b.ID, at)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("break %s: %w", b.ID, errBreakEnded)
	}
	if err != nil {
		return nil, fmt.Errorf("end break: %w", err)
	}
	shift, err := t.Shifts.Get(ctx, b.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("shift %s: %w", b.ShiftID, err)
	}
	err = record(ctx, t.Audit, auditEntry{
		BusinessID: shift.BusinessID,
		ActorID:    actorID,
		Action:     ActionBreakEnded,
		Entity:     "break",
		EntityID:   b.ID.String(),
		At:         at,
		Metadata: map[string]any{
			"shift_id":         b.ShiftID.String(),
			"duration_minutes": int(at.Sub(b.StartedAt).Minutes()),
		},
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}
