package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/metrics"
	"shiftclock-backend/internal/ports"
)

// ShiftLifecycle owns the NoActiveShift -> Active -> {Completed, ForcedEnded}
// state machine. Manual clock-out, force close and the sweeper all end shifts
// through closeWithEvent.
type ShiftLifecycle struct {
	Shifts   ports.ShiftRepository
	Events   ClockEventLog
	Breaks   BreakTracker
	Tx       ports.TxManager
	Audit    ports.AuditSink
	Policies config.PolicySet
	Logger   *slog.Logger
	Now      func() time.Time
}

type OpenShiftInput struct {
	UserID         int64
	BusinessID     int64
	ClockInEventID uuid.UUID
	TimeShiftID    *uuid.UUID
}

// Open starts a shift from a recorded clock-in event. It fails with
// ErrConflict when the user already has an active shift.
func (l ShiftLifecycle) Open(ctx context.Context, in OpenShiftInput) (*domain.Shift, error) {
	var out domain.Shift
	err := withinTx(ctx, l.Tx, func(ctx context.Context) error {
		ev, err := l.Events.Get(ctx, in.ClockInEventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Validationf("clock-in event %s does not exist", in.ClockInEventID)
			}
			return err
		}
		if ev.Type != domain.ClockIn || ev.UserID != in.UserID {
			return domain.Validationf("event %s is not a clock-in for user %d", ev.ID, in.UserID)
		}
		out = domain.Shift{
			ID:          uuid.New(),
			UserID:      in.UserID,
			BusinessID:  in.BusinessID,
			ClockInID:   ev.ID,
			Status:      domain.ShiftActive,
			StartedAt:   ev.Timestamp,
			TimeShiftID: in.TimeShiftID,
		}
		if err := l.Shifts.Insert(ctx, out); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("user %d already has an active shift: %w", in.UserID, err)
			}
			return fmt.Errorf("insert shift: %w", err)
		}
		return record(ctx, l.Audit, auditEntry{
			BusinessID: out.BusinessID,
			ActorID:    int64Ptr(out.UserID),
			Action:     ActionShiftOpened,
			Entity:     "shift",
			EntityID:   out.ID.String(),
			At:         out.StartedAt,
			Metadata:   map[string]any{"clock_in_id": ev.ID.String(), "method": string(ev.Method)},
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Close ends an active shift with a recorded clock-out event. It fails with
// ErrNotFound when the shift does not exist or is no longer active.
func (l ShiftLifecycle) Close(ctx context.Context, shiftID, clockOutEventID uuid.UUID) (*domain.Shift, error) {
	var out *domain.Shift
	err := withinTx(ctx, l.Tx, func(ctx context.Context) error {
		shift, err := l.Shifts.Get(ctx, shiftID)
		if err != nil {
			return fmt.Errorf("shift %s: %w", shiftID, err)
		}
		if !shift.Active() {
			return fmt.Errorf("shift %s is %s: %w", shiftID, shift.Status, domain.ErrNotFound)
		}
		ev, err := l.Events.Get(ctx, clockOutEventID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Validationf("clock-out event %s does not exist", clockOutEventID)
			}
			return err
		}
		out, err = l.closeWithEvent(ctx, *shift, *ev, int64Ptr(ev.UserID), nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	observeClosed(out)
	return out, nil
}

// ForceClose ends the user's active shift on behalf of a manager.
func (l ShiftLifecycle) ForceClose(ctx context.Context, actor domain.Actor, userID int64, reason string) (*domain.ClockEvent, *domain.Shift, error) {
	if !actor.Role.IsManager() {
		return nil, nil, fmt.Errorf("force close requires manager role: %w", domain.ErrUnauthorized)
	}
	var (
		ev  *domain.ClockEvent
		out *domain.Shift
	)
	err := withinTx(ctx, l.Tx, func(ctx context.Context) error {
		shift, err := l.Shifts.GetActiveByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("active shift for user %d: %w", userID, err)
		}
		if shift.BusinessID != actor.BusinessID {
			return fmt.Errorf("active shift for user %d: %w", userID, domain.ErrNotFound)
		}
		ev, err = l.Events.Record(ctx, RecordClockEventInput{
			UserID:     userID,
			BusinessID: shift.BusinessID,
			TerminalID: "manager",
			Type:       domain.ClockOut,
			Method:     domain.MethodManualForced,
			ActorID:    int64Ptr(actor.ID),
		})
		if err != nil {
			return err
		}
		out, err = l.closeWithEvent(ctx, *shift, *ev, int64Ptr(actor.ID), map[string]any{"reason": reason})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	observeClosed(out)
	return ev, out, nil
}

// GetActive returns the user's active shift, or nil.
func (l ShiftLifecycle) GetActive(ctx context.Context, userID int64) (*domain.Shift, error) {
	shift, err := l.Shifts.GetActiveByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active shift for user %d: %w", userID, err)
	}
	return shift, nil
}

// AutoCloseStale closes every active shift that started more than threshold
// before now. A threshold of zero uses each business's StaleAfter policy. The
// synthetic clock-out is stamped min(now, startedAt+threshold). Each shift is
// closed in its own transaction; failures are joined and do not stop the scan.
func (l ShiftLifecycle) AutoCloseStale(ctx context.Context, now time.Time, threshold time.Duration) ([]domain.Shift, error) {
	scan := threshold
	if scan <= 0 {
		scan = l.minStaleAfter()
	}
	candidates, err := l.Shifts.ListActiveStartedBefore(ctx, now.Add(-scan))
	if err != nil {
		return nil, fmt.Errorf("list stale shifts: %w", err)
	}

	log := logger(l.Logger)
	var (
		closed []domain.Shift
		errs   []error
	)
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		limit := threshold
		if limit <= 0 {
			limit = l.Policies.For(candidate.BusinessID).StaleAfter
		}
		if !candidate.StartedAt.Before(now.Add(-limit)) {
			continue
		}
		at := candidate.StartedAt.Add(limit)
		if now.Before(at) {
			at = now
		}

		shift, err := l.autoClose(ctx, candidate.ID, at)
		switch {
		case errors.Is(err, errAlreadyClosed):
			log.Info("stale shift closed concurrently", "shift_id", candidate.ID)
		case err != nil:
			log.Error("auto-close shift failed", "shift_id", candidate.ID, "user_id", candidate.UserID, "err", err)
			errs = append(errs, fmt.Errorf("shift %s: %w", candidate.ID, err))
		default:
			observeClosed(shift)
			closed = append(closed, *shift)
		}
	}
	return closed, errors.Join(errs...)
}

var errAlreadyClosed = errors.New("shift already closed")

func (l ShiftLifecycle) autoClose(ctx context.Context, shiftID uuid.UUID, at time.Time) (*domain.Shift, error) {
	var out *domain.Shift
	err := withinTx(ctx, l.Tx, func(ctx context.Context) error {
		shift, err := l.Shifts.Get(ctx, shiftID)
		if err != nil {
			return err
		}
		if !shift.Active() {
			return errAlreadyClosed
		}
		ev, err := l.Events.Record(ctx, RecordClockEventInput{
			UserID:     shift.UserID,
			BusinessID: shift.BusinessID,
			TerminalID: "system",
			Type:       domain.ClockOut,
			Method:     domain.MethodAuto,
			Timestamp:  at,
		})
		if err != nil {
			return err
		}
		out, err = l.closeWithEvent(ctx, *shift, *ev, nil, nil)
		if errors.Is(err, domain.ErrNotFound) {
			return errAlreadyClosed
		}
		return err
	})
	return out, err
}

// closeWithEvent is the single close path. It ends any open break at the
// clock-out instant, splits the hours and flips the status with a conditional
// update, so a shift closed concurrently yields ErrNotFound.
func (l ShiftLifecycle) closeWithEvent(ctx context.Context, shift domain.Shift, ev domain.ClockEvent, actorID *int64, extra map[string]any) (*domain.Shift, error) {
	if ev.Type != domain.ClockOut || ev.UserID != shift.UserID {
		return nil, domain.Validationf("event %s is not a clock-out for user %d", ev.ID, shift.UserID)
	}
	if !ev.Timestamp.After(shift.StartedAt) {
		return nil, domain.Validationf("clock-out at %s is not after shift start %s",
			ev.Timestamp.Format(time.RFC3339), shift.StartedAt.Format(time.RFC3339))
	}
	if _, err := l.Breaks.EndOpenForShift(ctx, shift.ID, ev.Timestamp, actorID); err != nil {
		return nil, err
	}

	total, regular, overtime := SplitHours(ev.Timestamp.Sub(shift.StartedAt), l.Policies.For(shift.BusinessID).RegularHours)
	status := domain.ShiftCompleted
	if ev.Method.Forced() {
		status = domain.ShiftForcedEnded
	}
	closed, err := l.Shifts.Close(ctx, ports.CloseShiftParams{
		ID:            shift.ID,
		ClockOutID:    ev.ID,
		Status:        status,
		EndedAt:       ev.Timestamp,
		TotalHours:    total,
		RegularHours:  regular,
		OvertimeHours: overtime,
	})
	if err != nil {
		return nil, fmt.Errorf("close shift %s: %w", shift.ID, err)
	}

	metadata := map[string]any{
		"clock_out_id":   ev.ID.String(),
		"method":         string(ev.Method),
		"total_hours":    total,
		"regular_hours":  regular,
		"overtime_hours": overtime,
	}
	for k, v := range extra {
		metadata[k] = v
	}
	err = record(ctx, l.Audit, auditEntry{
		BusinessID: shift.BusinessID,
		ActorID:    actorID,
		Action:     closeAction(ev.Method),
		Entity:     "shift",
		EntityID:   shift.ID.String(),
		At:         ev.Timestamp,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ApplyCorrection moves the start or end of the shift targeted by an approved
// correction and recomputes its hours. The corrected shift must still have a
// positive length no longer than the business's MaxShift, may not reach into
// the future and may not overlap another shift of the same user.
func (l ShiftLifecycle) ApplyCorrection(ctx context.Context, c domain.TimeCorrection, approverID int64) (*domain.Shift, error) {
	var out *domain.Shift
	err := withinTx(ctx, l.Tx, func(ctx context.Context) error {
		shift, err := l.correctionTarget(ctx, c)
		if err != nil {
			return err
		}
		start, end := shift.StartedAt, shift.EndedAt
		switch c.CorrectionType {
		case domain.CorrectionClockIn:
			start = c.CorrectedTime
		case domain.CorrectionClockOut:
			if end == nil {
				return fmt.Errorf("shift %s has not ended: %w", shift.ID, domain.ErrInvalidState)
			}
			corrected := c.CorrectedTime
			end = &corrected
		default:
			return domain.Validationf("unknown correction type %q", c.CorrectionType)
		}

		now := clock(l.Now)
		if start.After(now) || (end != nil && end.After(now)) {
			return domain.Validationf("corrected %s time %s is in the future",
				c.CorrectionType, c.CorrectedTime.Format(time.RFC3339))
		}

		policy := l.Policies.For(shift.BusinessID)
		params := ports.UpdateShiftTimesParams{ID: shift.ID, StartedAt: start, EndedAt: end}
		if end != nil {
			d := end.Sub(start)
			if d <= 0 {
				return &domain.DurationError{Duration: d, Max: policy.MaxShift, Reason: "corrected end must be after start"}
			}
			if d > policy.MaxShift {
				return &domain.DurationError{Duration: d, Max: policy.MaxShift, Reason: "corrected shift exceeds the maximum length"}
			}
			params.TotalHours, params.RegularHours, params.OvertimeHours = SplitHours(d, policy.RegularHours)
		}

		neighbours, err := l.Shifts.ListOverlapping(ctx, shift.UserID, start, end)
		if err != nil {
			return fmt.Errorf("shifts overlapping correction: %w", err)
		}
		for _, other := range neighbours {
			if other.ID != shift.ID {
				return fmt.Errorf("corrected shift overlaps shift %s: %w", other.ID, domain.ErrConflict)
			}
		}

		out, err = l.Shifts.UpdateTimes(ctx, params)
		if err != nil {
			return fmt.Errorf("update shift %s: %w", shift.ID, err)
		}
		metadata := map[string]any{
			"correction_id":   c.ID.String(),
			"correction_type": string(c.CorrectionType),
			"original_start":  shift.StartedAt.Format(time.RFC3339),
			"started_at":      start.Format(time.RFC3339),
		}
		if end != nil {
			metadata["ended_at"] = end.Format(time.RFC3339)
			metadata["total_hours"] = params.TotalHours
		}
		return record(ctx, l.Audit, auditEntry{
			BusinessID: shift.BusinessID,
			ActorID:    int64Ptr(approverID),
			Action:     ActionShiftCorrected,
			Entity:     "shift",
			EntityID:   shift.ID.String(),
			At:         now,
			Metadata:   metadata,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l ShiftLifecycle) correctionTarget(ctx context.Context, c domain.TimeCorrection) (*domain.Shift, error) {
	var (
		shift *domain.Shift
		err   error
	)
	switch {
	case c.ShiftID != nil:
		shift, err = l.Shifts.Get(ctx, *c.ShiftID)
	case c.ClockEventID != nil:
		shift, err = l.Shifts.GetByClockEvent(ctx, *c.ClockEventID)
	default:
		return nil, domain.Validationf("correction %s has no target", c.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("correction target: %w", err)
	}
	return shift, nil
}

func (l ShiftLifecycle) minStaleAfter() time.Duration {
	shortest := l.Policies.Default.StaleAfter
	for _, p := range l.Policies.Businesses {
		if p.StaleAfter < shortest {
			shortest = p.StaleAfter
		}
	}
	if shortest <= 0 {
		shortest = config.DefaultPolicy().StaleAfter
	}
	return shortest
}

// SplitHours returns total, regular and overtime hours for a shift length.
// Regular hours are capped at regularLimit; the remainder is overtime.
func SplitHours(d, regularLimit time.Duration) (total, regular, overtime float64) {
	if d < 0 {
		d = 0
	}
	reg := d
	if regularLimit > 0 && reg > regularLimit {
		reg = regularLimit
	}
	return d.Hours(), reg.Hours(), (d - reg).Hours()
}

func closeAction(m domain.ClockMethod) string {
	switch m {
	case domain.MethodAuto:
		return ActionShiftAutoClosed
	case domain.MethodManualForced:
		return ActionShiftForceEnded
	default:
		return ActionShiftCompleted
	}
}

func observeClosed(s *domain.Shift) {
	if s == nil {
		return
	}
	metrics.ShiftsClosed.WithLabelValues(string(s.Status)).Inc()
	metrics.ShiftHours.Observe(s.TotalHours)
}
