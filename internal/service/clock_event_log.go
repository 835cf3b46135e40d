package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/metrics"
	"shiftclock-backend/internal/ports"
)

// ClockEventLog is the append-only record of punches.
type ClockEventLog struct {
	Events ports.ClockEventRepository
	Tx     ports.TxManager
	Audit  ports.AuditSink
	Now    func() time.Time
}

type RecordClockEventInput struct {
	UserID     int64
	BusinessID int64
	TerminalID string
	Type       domain.ClockEventType
	Method     domain.ClockMethod
	// Timestamp defaults to now when zero.
	Timestamp  time.Time
	LocationID *string
	IPAddress  *string
	ActorID    *int64
}

func (l ClockEventLog) Record(ctx context.Context, in RecordClockEventInput) (*domain.ClockEvent, error) {
	if in.UserID <= 0 || in.BusinessID <= 0 {
		return nil, domain.Validationf("user and business are required")
	}
	if !in.Type.Valid() {
		return nil, domain.Validationf("unknown clock event type %q", in.Type)
	}
	if !validMethod(in.Method) {
		return nil, domain.Validationf("unknown clock method %q", in.Method)
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = clock(l.Now)
	}
	ev := domain.ClockEvent{
		ID:         uuid.New(),
		UserID:     in.UserID,
		BusinessID: in.BusinessID,
		TerminalID: in.TerminalID,
		Type:       in.Type,
		Method:     in.Method,
		Timestamp:  ts,
		LocationID: in.LocationID,
		IPAddress:  in.IPAddress,
	}

	err := withinTx(ctx, l.Tx, func(ctx context.Context) error {
		latest, err := l.Events.LatestForUser(ctx, in.UserID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return fmt.Errorf("latest clock event: %w", err)
		case !ts.After(latest.Timestamp):
			return domain.Validationf("clock event at %s is not after the previous event at %s",
				ts.Format(time.RFC3339), latest.Timestamp.Format(time.RFC3339))
		}
		if err := l.Events.Insert(ctx, ev); err != nil {
			return fmt.Errorf("insert clock event: %w", err)
		}
		actor := in.ActorID
		if actor == nil && ev.Method != domain.MethodAuto {
			actor = int64Ptr(in.UserID)
		}
		return record(ctx, l.Audit, auditEntry{
			BusinessID: ev.BusinessID,
			ActorID:    actor,
			Action:     ActionClockEventRecorded,
			Entity:     "clock_event",
			EntityID:   ev.ID.String(),
			At:         ts,
			Metadata: map[string]any{
				"user_id":     ev.UserID,
				"type":        string(ev.Type),
				"method":      string(ev.Method),
				"terminal_id": ev.TerminalID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.ClockEventsRecorded.WithLabelValues(string(ev.Type), string(ev.Method)).Inc()
	return &ev, nil
}

func (l ClockEventLog) Get(ctx context.Context, id uuid.UUID) (*domain.ClockEvent, error) {
	ev, err := l.Events.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("clock event %s: %w", id, err)
	}
	return ev, nil
}

func validMethod(m domain.ClockMethod) bool {
	switch m {
	case domain.MethodLogin, domain.MethodLogout, domain.MethodManual, domain.MethodManualForced, domain.MethodAuto:
		return true
	}
	return false
}
