package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

// TimeShiftService manages attendance periods. A period opens with the first
// clock-in of the day and closes on explicit checkout, or from the sweeper once
// none of its POS shifts is active.
type TimeShiftService struct {
	TimeShifts ports.TimeShiftRepository
	Shifts     ports.ShiftRepository
	Breaks     BreakTracker
	Tx         ports.TxManager
	Audit      ports.AuditSink
	Logger     *slog.Logger
	Now        func() time.Time
}

// EnsureOpen returns the user's open period, opening one at `at` if needed.
func (s TimeShiftService) EnsureOpen(ctx context.Context, userID, businessID int64, at time.Time) (*domain.TimeShift, error) {
	var out *domain.TimeShift
	err := withinTx(ctx, s.Tx, func(ctx context.Context) error {
		open, err := s.TimeShifts.GetOpenByUser(ctx, userID)
		if err == nil {
			out = open
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("open time shift: %w", err)
		}
		ts := domain.TimeShift{
			ID:         uuid.New(),
			UserID:     userID,
			BusinessID: businessID,
			ClockInAt:  at,
			Status:     domain.TimeShiftOpen,
			CreatedAt:  at,
		}
		if err := s.TimeShifts.Insert(ctx, ts); err != nil {
			return fmt.Errorf("insert time shift: %w", err)
		}
		out = &ts
		return record(ctx, s.Audit, auditEntry{
			BusinessID: businessID,
			ActorID:    int64Ptr(userID),
			Action:     ActionTimeShiftOpened,
			Entity:     "time_shift",
			EntityID:   ts.ID.String(),
			At:         at,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close checks the user out of their open period. It fails with ErrConflict
// while a POS shift in the period is still active.
func (s TimeShiftService) Close(ctx context.Context, actor domain.Actor, userID int64) (*domain.TimeShift, error) {
	if userID != actor.ID && !actor.Role.IsManager() {
		return nil, fmt.Errorf("checkout for another user: %w", domain.ErrUnauthorized)
	}
	var out *domain.TimeShift
	err := withinTx(ctx, s.Tx, func(ctx context.Context) error {
		open, err := s.TimeShifts.GetOpenByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("open time shift for user %d: %w", userID, err)
		}
		if open.BusinessID != actor.BusinessID {
			return fmt.Errorf("open time shift for user %d: %w", userID, domain.ErrNotFound)
		}
		shifts, err := s.Shifts.ListByTimeShift(ctx, open.ID)
		if err != nil {
			return fmt.Errorf("shifts of time shift %s: %w", open.ID, err)
		}
		for _, sh := range shifts {
			if sh.Active() {
				return fmt.Errorf("shift %s is still active: %w", sh.ID, domain.ErrConflict)
			}
		}
		now := clock(s.Now)
		out, err = s.close(ctx, *open, now, int64Ptr(actor.ID), ActionTimeShiftClosed)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CloseIdle closes the open periods among ids whose POS shifts are all closed,
// ending any break still open on those shifts first. The period's clock-out is
// the latest shift end. Periods are handled one transaction each; failures are
// joined and do not stop the scan.
func (s TimeShiftService) CloseIdle(ctx context.Context, businessID int64, ids []uuid.UUID, now time.Time) ([]domain.TimeShift, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	open, err := s.TimeShifts.ListOpenByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list open time shifts: %w", err)
	}
	log := logger(s.Logger)
	var (
		closed []domain.TimeShift
		errs   []error
	)
	for _, ts := range open {
		if !wanted[ts.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var done *domain.TimeShift
		err := withinTx(ctx, s.Tx, func(ctx context.Context) error {
			shifts, err := s.Shifts.ListByTimeShift(ctx, ts.ID)
			if err != nil {
				return err
			}
			end := ts.ClockInAt
			for _, sh := range shifts {
				if sh.Active() {
					return nil
				}
				if sh.EndedAt != nil && sh.EndedAt.After(end) {
					end = *sh.EndedAt
				}
				if sh.EndedAt != nil {
					if _, err := s.Breaks.EndOpenForShift(ctx, sh.ID, *sh.EndedAt, nil); err != nil {
						return err
					}
				}
			}
			if len(shifts) == 0 {
				end = now
			}
			done, err = s.close(ctx, ts, end, nil, ActionTimeShiftAutoClosed)
			return err
		})
		switch {
		case err != nil:
			log.Error("close idle time shift failed", "time_shift_id", ts.ID, "user_id", ts.UserID, "err", err)
			errs = append(errs, fmt.Errorf("time shift %s: %w", ts.ID, err))
		case done != nil:
			closed = append(closed, *done)
		}
	}
	return closed, errors.Join(errs...)
}

func (s TimeShiftService) close(ctx context.Context, ts domain.TimeShift, at time.Time, actorID *int64, action string) (*domain.TimeShift, error) {
	out, err := s.TimeShifts.Close(ctx, ts.ID, at)
	if err != nil {
		return nil, fmt.Errorf("close time shift %s: %w", ts.ID, err)
	}
	err = record(ctx, s.Audit, auditEntry{
		BusinessID: ts.BusinessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     "time_shift",
		EntityID:   ts.ID.String(),
		At:         at,
		Metadata:   map[string]any{"user_id": ts.UserID, "clock_in_at": ts.ClockInAt.Format(time.RFC3339)},
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
