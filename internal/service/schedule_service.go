package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/metrics"
	"shiftclock-backend/internal/ports"
	"shiftclock-backend/internal/scheduling"
)

// ScheduleService persists planned shifts after overlap and duration checks.
// Writes for one staff member are serialized by LockStaff; the store's
// exclusion constraint backs the check.
type ScheduleService struct {
	Schedules ports.ScheduleRepository
	Users     ports.UserRepository
	Tx        ports.TxManager
	Audit     ports.AuditSink
	Policies  config.PolicySet
	Location  *time.Location
	Now       func() time.Time
}

// ScheduleInput accepts either absolute StartTime/EndTime or a Date with
// local "HH:MM" Start/End, resolved in the business time zone.
type ScheduleInput struct {
	StaffID          int64
	StartTime        time.Time
	EndTime          time.Time
	Date             time.Time
	Start            string
	End              string
	AssignedRegister string
	Notes            string
}

func (s ScheduleService) interval(in ScheduleInput) (scheduling.Interval, error) {
	if in.Start != "" || in.End != "" {
		if in.Date.IsZero() {
			return scheduling.Interval{}, domain.Validationf("date is required with wall-clock times")
		}
		return scheduling.ResolveWallClock(in.Date, in.Start, in.End, s.location())
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return scheduling.Interval{}, domain.Validationf("start and end are required")
	}
	return scheduling.Interval{Start: in.StartTime, End: in.EndTime}, nil
}

func (s ScheduleService) location() *time.Location {
	if s.Location == nil {
		return time.Local
	}
	return s.Location
}

func (s ScheduleService) rules(businessID int64) scheduling.Rules {
	p := s.Policies.For(businessID)
	if p.MinShift <= 0 || p.MaxShift <= 0 {
		return scheduling.DefaultRules()
	}
	return scheduling.Rules{MinDuration: p.MinShift, MaxDuration: p.MaxShift}
}

func (s ScheduleService) Create(ctx context.Context, actor domain.Actor, in ScheduleInput) (*domain.Schedule, error) {
	if !actor.Role.IsManager() {
		return nil, fmt.Errorf("scheduling requires manager role: %w", domain.ErrUnauthorized)
	}
	iv, err := s.interval(in)
	if err != nil {
		return nil, rejected(err)
	}

	var out domain.Schedule
	err = withinTx(ctx, s.Tx, func(ctx context.Context) error {
		if err := s.checkStaff(ctx, actor.BusinessID, in.StaffID); err != nil {
			return err
		}
		if err := s.validate(ctx, actor.BusinessID, in.StaffID, iv, uuid.Nil); err != nil {
			return err
		}
		now := clock(s.Now)
		out = domain.Schedule{
			ID:               uuid.New(),
			StaffID:          in.StaffID,
			BusinessID:       actor.BusinessID,
			StartTime:        iv.Start,
			EndTime:          iv.End,
			AssignedRegister: in.AssignedRegister,
			Notes:            in.Notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.Schedules.Insert(ctx, out); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		return s.audit(ctx, actor, ActionScheduleCreated, out, now)
	})
	if err != nil {
		return nil, rejected(err)
	}
	return &out, nil
}

func (s ScheduleService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in ScheduleInput) (*domain.Schedule, error) {
	if !actor.Role.IsManager() {
		return nil, fmt.Errorf("scheduling requires manager role: %w", domain.ErrUnauthorized)
	}
	iv, err := s.interval(in)
	if err != nil {
		return nil, rejected(err)
	}

	var out *domain.Schedule
	err = withinTx(ctx, s.Tx, func(ctx context.Context) error {
		existing, err := s.get(ctx, actor.BusinessID, id)
		if err != nil {
			return err
		}
		staffID := in.StaffID
		if staffID == 0 {
			staffID = existing.StaffID
		}
		if staffID != existing.StaffID {
			if err := s.checkStaff(ctx, actor.BusinessID, staffID); err != nil {
				return err
			}
			// Moving a schedule between staff members touches both timelines.
			if err := s.lockStaff(ctx, existing.StaffID, staffID); err != nil {
				return err
			}
		}
		if err := s.validate(ctx, actor.BusinessID, staffID, iv, id); err != nil {
			return err
		}
		now := clock(s.Now)
		next := *existing
		next.StaffID = staffID
		next.StartTime, next.EndTime = iv.Start, iv.End
		next.AssignedRegister, next.Notes = in.AssignedRegister, in.Notes
		next.UpdatedAt = now
		out, err = s.Schedules.Update(ctx, next)
		if err != nil {
			return fmt.Errorf("update schedule: %w", err)
		}
		return s.audit(ctx, actor, ActionScheduleUpdated, *out, now)
	})
	if err != nil {
		return nil, rejected(err)
	}
	return out, nil
}

func (s ScheduleService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.Role.IsManager() {
		return fmt.Errorf("scheduling requires manager role: %w", domain.ErrUnauthorized)
	}
	return withinTx(ctx, s.Tx, func(ctx context.Context) error {
		existing, err := s.get(ctx, actor.BusinessID, id)
		if err != nil {
			return err
		}
		if err := s.Schedules.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete schedule %s: %w", id, err)
		}
		return s.audit(ctx, actor, ActionScheduleDeleted, *existing, clock(s.Now))
	})
}

func (s ScheduleService) Get(ctx context.Context, businessID int64, id uuid.UUID) (*domain.Schedule, error) {
	return s.get(ctx, businessID, id)
}

// List returns the business's schedules intersecting [from, to). A staffID of
// zero lists every staff member.
func (s ScheduleService) List(ctx context.Context, businessID, staffID int64, from, to time.Time) ([]domain.Schedule, error) {
	if !to.After(from) {
		return nil, domain.Validationf("range end must be after start")
	}
	if staffID == 0 {
		items, err := s.Schedules.ListByBusiness(ctx, businessID, from, to)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		return items, nil
	}
	items, err := s.Schedules.ListForStaff(ctx, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	out := items[:0]
	for _, it := range items {
		if it.BusinessID == businessID {
			out = append(out, it)
		}
	}
	return out, nil
}

// Covering returns the staff member's schedules that intersect [from, to).
func (s ScheduleService) Covering(ctx context.Context, staffID int64, from, to time.Time) ([]domain.Schedule, error) {
	return s.Schedules.ListForStaff(ctx, staffID, from, to)
}

func (s ScheduleService) get(ctx context.Context, businessID int64, id uuid.UUID) (*domain.Schedule, error) {
	sc, err := s.Schedules.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", id, err)
	}
	if sc.BusinessID != businessID {
		return nil, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	return sc, nil
}

func (s ScheduleService) checkStaff(ctx context.Context, businessID, staffID int64) error {
	if staffID <= 0 {
		return domain.Validationf("staff is required")
	}
	if s.Users == nil {
		return nil
	}
	u, err := s.Users.GetByID(ctx, staffID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && (u.BusinessID != businessID || !u.Active)) {
		return domain.Validationf("staff %d is not an active member of this business", staffID)
	}
	if err != nil {
		return fmt.Errorf("staff lookup: %w", err)
	}
	return nil
}

// validate locks the staff member's schedules, then checks duration and
// overlap against every schedule that could intersect the candidate.
// lockStaff takes the per-staff schedule locks in ascending id order so two
// transactions locking the same pair cannot deadlock.
func (s ScheduleService) lockStaff(ctx context.Context, staffIDs ...int64) error {
	ids := append([]int64(nil), staffIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		if err := s.Schedules.LockStaff(ctx, id); err != nil {
			return fmt.Errorf("lock staff schedules: %w", err)
		}
	}
	return nil
}

func (s ScheduleService) validate(ctx context.Context, businessID, staffID int64, iv scheduling.Interval, excludeID uuid.UUID) error {
	if err := s.Schedules.LockStaff(ctx, staffID); err != nil {
		return fmt.Errorf("lock staff schedules: %w", err)
	}
	rules := s.rules(businessID)
	if err := scheduling.ValidateDuration(iv, rules); err != nil {
		return err
	}
	existing, err := s.Schedules.ListForStaff(ctx, staffID, iv.Start, iv.End)
	if err != nil {
		return fmt.Errorf("load staff schedules: %w", err)
	}
	return scheduling.Validate(staffID, iv, excludeID, existing, rules)
}

func (s ScheduleService) audit(ctx context.Context, actor domain.Actor, action string, sc domain.Schedule, at time.Time) error {
	return record(ctx, s.Audit, auditEntry{
		BusinessID: sc.BusinessID,
		ActorID:    int64Ptr(actor.ID),
		Action:     action,
		Entity:     "schedule",
		EntityID:   sc.ID.String(),
		At:         at,
		Metadata: map[string]any{
			"staff_id":   sc.StaffID,
			"start_time": sc.StartTime.Format(time.RFC3339),
			"end_time":   sc.EndTime.Format(time.RFC3339),
		},
	})
}

// rejected counts validation failures by reason and returns err unchanged.
func rejected(err error) error {
	var (
		overlap  *domain.OverlapError
		duration *domain.DurationError
	)
	switch {
	case errors.As(err, &overlap), errors.Is(err, domain.ErrConflict):
		metrics.ScheduleRejected.WithLabelValues("overlap").Inc()
	case errors.As(err, &duration):
		metrics.ScheduleRejected.WithLabelValues("duration").Inc()
	case errors.Is(err, domain.ErrValidation):
		metrics.ScheduleRejected.WithLabelValues("invalid").Inc()
	}
	return err
}
