package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

// Audit actions emitted by the services.
const (
	ActionClockEventRecorded  = "clock_event.recorded"
	ActionShiftOpened         = "shift.opened"
	ActionShiftCompleted      = "shift.completed"
	ActionShiftAutoClosed     = "shift.auto_closed"
	ActionShiftForceEnded     = "shift.force_ended"
	ActionShiftCorrected      = "shift.corrected"
	ActionBreakStarted        = "break.started"
	ActionBreakEnded          = "break.ended"
	ActionCorrectionRequested = "correction.requested"
	ActionCorrectionApproved  = "correction.approved"
	ActionCorrectionRejected  = "correction.rejected"
	ActionScheduleCreated     = "schedule.created"
	ActionScheduleUpdated     = "schedule.updated"
	ActionScheduleDeleted     = "schedule.deleted"
	ActionTimeShiftOpened     = "time_shift.opened"
	ActionTimeShiftClosed     = "time_shift.closed"
	ActionTimeShiftAutoClosed = "time_shift.auto_closed"
)

type auditEntry struct {
	BusinessID int64
	ActorID    *int64
	Action     string
	Entity     string
	EntityID   string
	At         time.Time
	Metadata   map[string]any
}

func record(ctx context.Context, sink ports.AuditSink, e auditEntry) error {
	if sink == nil {
		return nil
	}
	err := sink.Record(ctx, domain.AuditRecord{
		BusinessID: e.BusinessID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		Entity:     e.Entity,
		EntityID:   e.EntityID,
		Metadata:   e.Metadata,
		OccurredAt: e.At,
	})
	if err != nil {
		return fmt.Errorf("audit %s: %w", e.Action, err)
	}
	return nil
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func withinTx(ctx context.Context, tx ports.TxManager, fn func(ctx context.Context) error) error {
	if tx == nil {
		return fn(ctx)
	}
	return tx.WithinTx(ctx, fn)
}

func int64Ptr(v int64) *int64 { return &v }
