package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/metrics"
	"shiftclock-backend/internal/ports"
)

// CorrectionApplier performs the side effect an approved correction authorizes.
// It runs in the approval transaction; an error leaves the correction pending.
type CorrectionApplier func(ctx context.Context, c domain.TimeCorrection, approverID int64) error

// TimeCorrectionWorkflow manages the pending -> approved|rejected state machine.
type TimeCorrectionWorkflow struct {
	Corrections ports.TimeCorrectionRepository
	Events      ports.ClockEventRepository
	Shifts      ports.ShiftRepository
	Tx          ports.TxManager
	Audit       ports.AuditSink
	// Appliers are keyed by correction type. A type with no applier is approved
	// without side effect.
	Appliers map[domain.CorrectionType]CorrectionApplier
	Now      func() time.Time
}

type RequestCorrectionInput struct {
	ClockEventID   *uuid.UUID
	ShiftID        *uuid.UUID
	CorrectionType domain.CorrectionType
	CorrectedTime  time.Time
	Reason         string
}

// Request files a pending correction against a clock event or a shift the
// actor may see. Staff may only correct their own records.
func (w TimeCorrectionWorkflow) Request(ctx context.Context, actor domain.Actor, in RequestCorrectionInput) (*domain.TimeCorrection, error) {
	if !in.CorrectionType.Valid() {
		return nil, domain.Validationf("unknown correction type %q", in.CorrectionType)
	}
	if (in.ClockEventID == nil) == (in.ShiftID == nil) {
		return nil, domain.Validationf("exactly one of clock event or shift must be referenced")
	}
	if in.CorrectedTime.IsZero() {
		return nil, domain.Validationf("corrected time is required")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, domain.Validationf("reason is required")
	}

	var out domain.TimeCorrection
	err := withinTx(ctx, w.Tx, func(ctx context.Context) error {
		original, ownerID, businessID, err := w.resolveTarget(ctx, in)
		if err != nil {
			return err
		}
		if businessID != actor.BusinessID || (ownerID != actor.ID && !actor.Role.IsManager()) {
			return domain.Validationf("correction target does not exist")
		}
		now := clock(w.Now)
		out = domain.TimeCorrection{
			ID:             uuid.New(),
			BusinessID:     businessID,
			ClockEventID:   in.ClockEventID,
			ShiftID:        in.ShiftID,
			CorrectionType: in.CorrectionType,
			OriginalTime:   original,
			CorrectedTime:  in.CorrectedTime,
			Reason:         reason,
			RequestedBy:    actor.ID,
			Status:         domain.CorrectionPending,
			CreatedAt:      now,
		}
		if err := w.Corrections.Insert(ctx, out); err != nil {
			return fmt.Errorf("insert correction: %w", err)
		}
		return record(ctx, w.Audit, auditEntry{
			BusinessID: businessID,
			ActorID:    int64Ptr(actor.ID),
			Action:     ActionCorrectionRequested,
			Entity:     "time_correction",
			EntityID:   out.ID.String(),
			At:         now,
			Metadata: map[string]any{
				"correction_type": string(out.CorrectionType),
				"original_time":   out.OriginalTime.Format(time.RFC3339),
				"corrected_time":  out.CorrectedTime.Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// resolveTarget returns the time being corrected, its owner and business. An
// unknown target is a validation failure of the payload.
func (w TimeCorrectionWorkflow) resolveTarget(ctx context.Context, in RequestCorrectionInput) (time.Time, int64, int64, error) {
	if in.ClockEventID != nil {
		ev, err := w.Events.Get(ctx, *in.ClockEventID)
		if errors.Is(err, domain.ErrNotFound) {
			return time.Time{}, 0, 0, domain.Validationf("clock event %s does not exist", *in.ClockEventID)
		}
		if err != nil {
			return time.Time{}, 0, 0, fmt.Errorf("clock event: %w", err)
		}
		want := domain.ClockIn
		if in.CorrectionType == domain.CorrectionClockOut {
			want = domain.ClockOut
		}
		if ev.Type != want {
			return time.Time{}, 0, 0, domain.Validationf("%s correction cannot target a clock-%s event", in.CorrectionType, ev.Type)
		}
		return ev.Timestamp, ev.UserID, ev.BusinessID, nil
	}

	shift, err := w.Shifts.Get(ctx, *in.ShiftID)
	if errors.Is(err, domain.ErrNotFound) {
		return time.Time{}, 0, 0, domain.Validationf("shift %s does not exist", *in.ShiftID)
	}
	if err != nil {
		return time.Time{}, 0, 0, fmt.Errorf("shift: %w", err)
	}
	if in.CorrectionType == domain.CorrectionClockIn {
		return shift.StartedAt, shift.UserID, shift.BusinessID, nil
	}
	if shift.EndedAt == nil {
		return time.Time{}, 0, 0, domain.Validationf("shift %s has not ended", shift.ID)
	}
	return *shift.EndedAt, shift.UserID, shift.BusinessID, nil
}

// Process approves or rejects a pending correction. On approval the applier
// for the correction type runs in the same transaction.
func (w TimeCorrectionWorkflow) Process(ctx context.Context, actor domain.Actor, correctionID uuid.UUID, approved bool) (*domain.TimeCorrection, error) {
	if !actor.Role.IsManager() {
		return nil, fmt.Errorf("processing corrections requires manager role: %w", domain.ErrUnauthorized)
	}
	status, action := domain.CorrectionRejected, ActionCorrectionRejected
	if approved {
		status, action = domain.CorrectionApproved, ActionCorrectionApproved
	}

	var out *domain.TimeCorrection
	err := withinTx(ctx, w.Tx, func(ctx context.Context) error {
		current, err := w.Corrections.Get(ctx, correctionID)
		if err != nil {
			return fmt.Errorf("correction %s: %w", correctionID, err)
		}
		if current.BusinessID != actor.BusinessID {
			return fmt.Errorf("correction %s: %w", correctionID, domain.ErrNotFound)
		}
		if current.Status != domain.CorrectionPending {
			return fmt.Errorf("correction %s is %s: %w", correctionID, current.Status, domain.ErrInvalidState)
		}

		now := clock(w.Now)
		out, err = w.Corrections.Resolve(ctx, correctionID, status, actor.ID, now)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("correction %s is no longer pending: %w", correctionID, domain.ErrInvalidState)
		}
		if err != nil {
			return fmt.Errorf("resolve correction: %w", err)
		}
		if approved {
			if apply := w.Appliers[out.CorrectionType]; apply != nil {
				if err := apply(ctx, *out, actor.ID); err != nil {
					return fmt.Errorf("apply correction %s: %w", out.ID, err)
				}
			}
		}
		return record(ctx, w.Audit, auditEntry{
			BusinessID: out.BusinessID,
			ActorID:    int64Ptr(actor.ID),
			Action:     action,
			Entity:     "time_correction",
			EntityID:   out.ID.String(),
			At:         now,
			Metadata:   map[string]any{"requested_by": out.RequestedBy},
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.CorrectionsProcessed.WithLabelValues(string(status)).Inc()
	return out, nil
}

func (w TimeCorrectionWorkflow) ListPending(ctx context.Context, businessID int64) ([]domain.TimeCorrection, error) {
	items, err := w.Corrections.ListPending(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list pending corrections: %w", err)
	}
	return items, nil
}

// ShiftCorrectionApplier adapts ShiftLifecycle.ApplyCorrection to the applier signature.
func ShiftCorrectionApplier(l ShiftLifecycle) CorrectionApplier {
	return func(ctx context.Context, c domain.TimeCorrection, approverID int64) error {
		_, err := l.ApplyCorrection(ctx, c, approverID)
		return err
	}
}
