package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

// TimeClock is the entry point for punches: it records the clock event and
// drives the shift and attendance period in one transaction.
type TimeClock struct {
	Users      ports.UserRepository
	Events     ClockEventLog
	Shifts     ShiftLifecycle
	TimeShifts TimeShiftService
	Schedules  ScheduleService
	Tx         ports.TxManager
	Policies   config.PolicySet
	Logger     *slog.Logger
	Now        func() time.Time
}

const (
	WarningUnscheduled = "unscheduled"
	WarningEarly       = "early"
	WarningLate        = "late"
)

// ValidationWarning flags a clock-in that succeeded but deviates from the schedule.
type ValidationWarning struct {
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	ScheduleID *string    `json:"scheduleId,omitempty"`
	StartTime  *time.Time `json:"scheduledStart,omitempty"`
}

type ClockInput struct {
	UserID     int64
	BusinessID int64
	TerminalID string
	Method     domain.ClockMethod
	LocationID *string
	IPAddress  *string
}

type ClockInResult struct {
	Event     domain.ClockEvent
	Shift     domain.Shift
	TimeShift domain.TimeShift
	Warnings  []ValidationWarning
}

type ClockOutResult struct {
	Event domain.ClockEvent
	Shift domain.Shift
}

// ClockIn records an in event and opens a shift inside the user's attendance
// period. It fails with ErrConflict when a shift is already active.
func (c TimeClock) ClockIn(ctx context.Context, in ClockInput) (*ClockInResult, error) {
	if in.Method == "" {
		in.Method = domain.MethodLogin
	}
	if in.Method != domain.MethodLogin && in.Method != domain.MethodManual {
		return nil, domain.Validationf("clock-in method must be login or manual")
	}

	var res ClockInResult
	err := withinTx(ctx, c.Tx, func(ctx context.Context) error {
		if err := c.checkUser(ctx, in.UserID, in.BusinessID); err != nil {
			return err
		}
		active, err := c.Shifts.GetActive(ctx, in.UserID)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("user %d already has an active shift: %w", in.UserID, domain.ErrConflict)
		}
		ev, err := c.Events.Record(ctx, RecordClockEventInput{
			UserID:     in.UserID,
			BusinessID: in.BusinessID,
			TerminalID: in.TerminalID,
			Type:       domain.ClockIn,
			Method:     in.Method,
			LocationID: in.LocationID,
			IPAddress:  in.IPAddress,
		})
		if err != nil {
			return err
		}
		ts, err := c.TimeShifts.EnsureOpen(ctx, in.UserID, in.BusinessID, ev.Timestamp)
		if err != nil {
			return err
		}
		shift, err := c.Shifts.Open(ctx, OpenShiftInput{
			UserID:         in.UserID,
			BusinessID:     in.BusinessID,
			ClockInEventID: ev.ID,
			TimeShiftID:    &ts.ID,
		})
		if err != nil {
			return err
		}
		res = ClockInResult{Event: *ev, Shift: *shift, TimeShift: *ts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	warnings, err := c.warnings(ctx, in.UserID, in.BusinessID, res.Event.Timestamp)
	if err != nil {
		logger(c.Logger).Warn("schedule check after clock-in failed", "user_id", in.UserID, "err", err)
	}
	res.Warnings = warnings
	return &res, nil
}

// ClockOut records an out event and closes the user's active shift.
func (c TimeClock) ClockOut(ctx context.Context, in ClockInput) (*ClockOutResult, error) {
	if in.Method == "" {
		in.Method = domain.MethodLogout
	}
	if in.Method != domain.MethodLogout && in.Method != domain.MethodManual {
		return nil, domain.Validationf("clock-out method must be logout or manual")
	}

	var res ClockOutResult
	err := withinTx(ctx, c.Tx, func(ctx context.Context) error {
		active, err := c.Shifts.GetActive(ctx, in.UserID)
		if err != nil {
			return err
		}
		if active == nil || active.BusinessID != in.BusinessID {
			return fmt.Errorf("active shift for user %d: %w", in.UserID, domain.ErrNotFound)
		}
		ev, err := c.Events.Record(ctx, RecordClockEventInput{
			UserID:     in.UserID,
			BusinessID: in.BusinessID,
			TerminalID: in.TerminalID,
			Type:       domain.ClockOut,
			Method:     in.Method,
			LocationID: in.LocationID,
			IPAddress:  in.IPAddress,
		})
		if err != nil {
			return err
		}
		shift, err := c.Shifts.Close(ctx, active.ID, ev.ID)
		if err != nil {
			return err
		}
		res = ClockOutResult{Event: *ev, Shift: *shift}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c TimeClock) ForceClockOut(ctx context.Context, actor domain.Actor, userID int64, reason string) (*ClockOutResult, error) {
	ev, shift, err := c.Shifts.ForceClose(ctx, actor, userID, reason)
	if err != nil {
		return nil, err
	}
	return &ClockOutResult{Event: *ev, Shift: *shift}, nil
}

func (c TimeClock) Active(ctx context.Context, userID int64) (*domain.Shift, error) {
	return c.Shifts.GetActive(ctx, userID)
}

// VerifyPIN authenticates a staff member at a shared terminal.
func (c TimeClock) VerifyPIN(ctx context.Context, businessID, userID int64, pin string) (*domain.User, error) {
	if c.Users == nil {
		return nil, fmt.Errorf("pin login unavailable: %w", domain.ErrUnauthorized)
	}
	u, err := c.Users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid pin: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if !u.Active || u.BusinessID != businessID || u.PinHash == nil {
		return nil, fmt.Errorf("invalid pin: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PinHash), []byte(pin)); err != nil {
		return nil, fmt.Errorf("invalid pin: %w", domain.ErrUnauthorized)
	}
	return u, nil
}

func (c TimeClock) checkUser(ctx context.Context, userID, businessID int64) error {
	if c.Users == nil {
		return nil
	}
	u, err := c.Users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}
	if u.BusinessID != businessID {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	if !u.Active {
		return fmt.Errorf("user %d is deactivated: %w", userID, domain.ErrInvalidState)
	}
	return nil
}

// warnings compares a clock-in instant with the user's schedules. A schedule
// covers the punch from EarlyClockInGrace before its start until its end.
func (c TimeClock) warnings(ctx context.Context, userID, businessID int64, at time.Time) ([]ValidationWarning, error) {
	if c.Schedules.Schedules == nil {
		return nil, nil
	}
	policy := c.Policies.For(businessID)
	grace := policy.EarlyClockInGrace
	schedules, err := c.Schedules.Covering(ctx, userID, at.Add(-policy.MaxShift), at.Add(policy.MaxShift))
	if err != nil {
		return nil, err
	}

	var next *domain.Schedule
	for i := range schedules {
		sc := schedules[i]
		if sc.BusinessID != businessID {
			continue
		}
		if !at.Before(sc.StartTime.Add(-grace)) && at.Before(sc.EndTime) {
			if late := at.Sub(sc.StartTime); late > grace {
				return []ValidationWarning{scheduleWarning(WarningLate,
					fmt.Sprintf("clocked in %d minutes after the scheduled start", int(late.Minutes())), sc)}, nil
			}
			return nil, nil
		}
		if sc.StartTime.After(at) && (next == nil || sc.StartTime.Before(next.StartTime)) {
			next = &sc
		}
	}
	if next != nil && next.StartTime.Sub(at) <= policy.RegularHours {
		early := next.StartTime.Sub(at)
		return []ValidationWarning{scheduleWarning(WarningEarly,
			fmt.Sprintf("clocked in %d minutes before the scheduled start", int(early.Minutes())), *next)}, nil
	}
	return []ValidationWarning{{Code: WarningUnscheduled, Message: "no schedule covers this clock-in"}}, nil
}

func scheduleWarning(code, msg string, sc domain.Schedule) ValidationWarning {
	id := sc.ID.String()
	start := sc.StartTime
	return ValidationWarning{Code: code, Message: msg, ScheduleID: &id, StartTime: &start}
}
