// Package memstore is an in-memory implementation of the ports repositories.
// It mirrors the constraints the Postgres schema enforces (one active shift
// per user, one open break per shift, one open time shift per user, no
// overlapping schedules per staff member) and serializes transactions with a
// single lock, rolling back every table when fn fails.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

type Store struct {
	mu sync.Mutex

	users       map[int64]domain.User
	events      map[uuid.UUID]domain.ClockEvent
	shifts      map[uuid.UUID]domain.Shift
	breaks      map[uuid.UUID]domain.Break
	corrections map[uuid.UUID]domain.TimeCorrection
	schedules   map[uuid.UUID]domain.Schedule
	timeShifts  map[uuid.UUID]domain.TimeShift
	audit       []domain.AuditRecord
}

func New() *Store {
	return &Store{
		users:       map[int64]domain.User{},
		events:      map[uuid.UUID]domain.ClockEvent{},
		shifts:      map[uuid.UUID]domain.Shift{},
		breaks:      map[uuid.UUID]domain.Break{},
		corrections: map[uuid.UUID]domain.TimeCorrection{},
		schedules:   map[uuid.UUID]domain.Schedule{},
		timeShifts:  map[uuid.UUID]domain.TimeShift{},
	}
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// lock is a no-op inside WithinTx, which already holds the mutex.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	users       map[int64]domain.User
	events      map[uuid.UUID]domain.ClockEvent
	shifts      map[uuid.UUID]domain.Shift
	breaks      map[uuid.UUID]domain.Break
	corrections map[uuid.UUID]domain.TimeCorrection
	schedules   map[uuid.UUID]domain.Schedule
	timeShifts  map[uuid.UUID]domain.TimeShift
	auditLen    int
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		users:       copyMap(s.users),
		events:      copyMap(s.events),
		shifts:      copyMap(s.shifts),
		breaks:      copyMap(s.breaks),
		corrections: copyMap(s.corrections),
		schedules:   copyMap(s.schedules),
		timeShifts:  copyMap(s.timeShifts),
		auditLen:    len(s.audit),
	}
}

func (s *Store) restore(snap snapshot) {
	s.users = snap.users
	s.events = snap.events
	s.shifts = snap.shifts
	s.breaks = snap.breaks
	s.corrections = snap.corrections
	s.schedules = snap.schedules
	s.timeShifts = snap.timeShifts
	s.audit = s.audit[:snap.auditLen]
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Health always succeeds.
func (s *Store) Health(context.Context) error { return nil }

// PutUser seeds the external user directory.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AuditRecords returns a copy of every committed audit record.
func (s *Store) AuditRecords() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditRecord(nil), s.audit...)
}

// Shifts returns every stored shift ordered by start time.
func (s *Store) Shifts() []domain.Shift {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Shift, 0, len(s.shifts))
	for _, sh := range s.shifts {
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Events returns every stored clock event ordered by timestamp.
func (s *Store) Events() []domain.ClockEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ClockEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *Store) Users() UserRepo             { return UserRepo{s} }
func (s *Store) ClockEvents() ClockEventRepo { return ClockEventRepo{s} }
func (s *Store) ShiftRepo() ShiftRepo        { return ShiftRepo{s} }
func (s *Store) Breaks() BreakRepo           { return BreakRepo{s} }
func (s *Store) Corrections() CorrectionRepo { return CorrectionRepo{s} }
func (s *Store) Schedules() ScheduleRepo     { return ScheduleRepo{s} }
func (s *Store) TimeShifts() TimeShiftRepo   { return TimeShiftRepo{s} }
func (s *Store) Audit() AuditSink            { return AuditSink{s} }

var (
	_ ports.TxManager                = (*Store)(nil)
	_ ports.UserRepository           = UserRepo{}
	_ ports.ClockEventRepository     = ClockEventRepo{}
	_ ports.ShiftRepository          = ShiftRepo{}
	_ ports.BreakRepository          = BreakRepo{}
	_ ports.TimeCorrectionRepository = CorrectionRepo{}
	_ ports.ScheduleRepository       = ScheduleRepo{}
	_ ports.TimeShiftRepository      = TimeShiftRepo{}
	_ ports.AuditSink                = AuditSink{}
)

type UserRepo struct{ s *Store }

func (r UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

type ClockEventRepo struct{ s *Store }

func (r ClockEventRepo) Insert(ctx context.Context, ev domain.ClockEvent) error {
	defer r.s.lock(ctx)()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = ev.Timestamp
	}
	r.s.events[ev.ID] = ev
	return nil
}

func (r ClockEventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.ClockEvent, error) {
	defer r.s.lock(ctx)()
	ev, ok := r.s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ev, nil
}

func (r ClockEventRepo) LatestForUser(ctx context.Context, userID int64) (*domain.ClockEvent, error) {
	defer r.s.lock(ctx)()
	var latest *domain.ClockEvent
	for _, ev := range r.s.events {
		if ev.UserID != userID {
			continue
		}
		if latest == nil || ev.Timestamp.After(latest.Timestamp) {
			ev := ev
			latest = &ev
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

type ShiftRepo struct{ s *Store }

func (r ShiftRepo) Insert(ctx context.Context, sh domain.Shift) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.shifts {
		if existing.UserID == sh.UserID && existing.Status == domain.ShiftActive {
			return domain.ErrConflict
		}
	}
	sh.CreatedAt, sh.UpdatedAt = sh.StartedAt, sh.StartedAt
	r.s.shifts[sh.ID] = sh
	return nil
}

func (r ShiftRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Shift, error) {
	defer r.s.lock(ctx)()
	sh, ok := r.s.shifts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sh, nil
}

func (r ShiftRepo) GetActiveByUser(ctx context.Context, userID int64) (*domain.Shift, error) {
	defer r.s.lock(ctx)()
	for _, sh := range r.s.shifts {
		if sh.UserID == userID && sh.Status == domain.ShiftActive {
			return &sh, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r ShiftRepo) GetByClockEvent(ctx context.Context, eventID uuid.UUID) (*domain.Shift, error) {
	defer r.s.lock(ctx)()
	for _, sh := range r.s.shifts {
		if sh.ClockInID == eventID || (sh.ClockOutID != nil && *sh.ClockOutID == eventID) {
			return &sh, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r ShiftRepo) Close(ctx context.Context, p ports.CloseShiftParams) (*domain.Shift, error) {
	defer r.s.lock(ctx)()
	sh, ok := r.s.shifts[p.ID]
	if !ok || sh.Status != domain.ShiftActive {
		return nil, domain.ErrNotFound
	}
	outID, endedAt := p.ClockOutID, p.EndedAt
	sh.ClockOutID = &outID
	sh.Status = p.Status
	sh.EndedAt = &endedAt
	sh.TotalHours, sh.RegularHours, sh.OvertimeHours = p.TotalHours, p.RegularHours, p.OvertimeHours
	sh.UpdatedAt = endedAt
	r.s.shifts[sh.ID] = sh
	return &sh, nil
}

func (r ShiftRepo) UpdateTimes(ctx context.Context, p ports.UpdateShiftTimesParams) (*domain.Shift, error) {
	defer r.s.lock(ctx)()
	sh, ok := r.s.shifts[p.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	sh.StartedAt = p.StartedAt
	if p.EndedAt != nil {
		endedAt := *p.EndedAt
		sh.EndedAt = &endedAt
	} else {
		sh.EndedAt = nil
	}
	sh.TotalHours, sh.RegularHours, sh.OvertimeHours = p.TotalHours, p.RegularHours, p.OvertimeHours
	r.s.shifts[sh.ID] = sh
	return &sh, nil
}

func (r ShiftRepo) ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Shift, error) {
	return r.filter(ctx, func(sh domain.Shift) bool {
		return sh.Status == domain.ShiftActive && sh.StartedAt.Before(cutoff)
	}), nil
}

func (r ShiftRepo) ListByTimeShift(ctx context.Context, timeShiftID uuid.UUID) ([]domain.Shift, error) {
	return r.filter(ctx, func(sh domain.Shift) bool {
		return sh.TimeShiftID != nil && *sh.TimeShiftID == timeShiftID
	}), nil
}

func (r ShiftRepo) ListEndedBetween(ctx context.Context, businessID int64, from, to time.Time) ([]domain.Shift, error) {
	return r.filter(ctx, func(sh domain.Shift) bool {
		return sh.BusinessID == businessID && sh.Status != domain.ShiftActive && sh.EndedAt != nil &&
			!sh.EndedAt.Before(from) && sh.EndedAt.Before(to)
	}), nil
}

func (r ShiftRepo) ListOverlapping(ctx context.Context, userID int64, from time.Time, to *time.Time) ([]domain.Shift, error) {
	return r.filter(ctx, func(sh domain.Shift) bool {
		if sh.UserID != userID {
			return false
		}
		if sh.EndedAt != nil && !sh.EndedAt.After(from) {
			return false
		}
		return to == nil || sh.StartedAt.Before(*to)
	}), nil
}

func (r ShiftRepo) filter(ctx context.Context, keep func(domain.Shift) bool) []domain.Shift {
	defer r.s.lock(ctx)()
	var out []domain.Shift
	for _, sh := range r.s.shifts {
		if keep(sh) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

type BreakRepo struct{ s *Store }

func (r BreakRepo) Insert(ctx context.Context, b domain.Break) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.breaks {
		if existing.ShiftID == b.ShiftID && existing.EndedAt == nil {
			return domain.ErrConflict
		}
	}
	r.s.breaks[b.ID] = b
	return nil
}

func (r BreakRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Break, error) {
	defer r.s.lock(ctx)()
	b, ok := r.s.breaks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (r BreakRepo) GetOpenByShift(ctx context.Context, shiftID uuid.UUID) (*domain.Break, error) {
	defer r.s.lock(ctx)()
	for _, b := range r.s.breaks {
		if b.ShiftID == shiftID && b.EndedAt == nil {
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r BreakRepo) End(ctx context.Context, id uuid.UUID, endedAt time.Time) (*domain.Break, error) {
	defer r.s.lock(ctx)()
	b, ok := r.s.breaks[id]
	if !ok || b.EndedAt != nil {
		return nil, domain.ErrNotFound
	}
	b.EndedAt = &endedAt
	r.s.breaks[id] = b
	return &b, nil
}

func (r BreakRepo) ListByShift(ctx context.Context, shiftID uuid.UUID) ([]domain.Break, error) {
	defer r.s.lock(ctx)()
	var out []domain.Break
	for _, b := range r.s.breaks {
		if b.ShiftID == shiftID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

type CorrectionRepo struct{ s *Store }

func (r CorrectionRepo) Insert(ctx context.Context, c domain.TimeCorrection) error {
	defer r.s.lock(ctx)()
	r.s.corrections[c.ID] = c
	return nil
}

func (r CorrectionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.TimeCorrection, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.corrections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r CorrectionRepo) ListPending(ctx context.Context, businessID int64) ([]domain.TimeCorrection, error) {
	defer r.s.lock(ctx)()
	var out []domain.TimeCorrection
	for _, c := range r.s.corrections {
		if c.BusinessID == businessID && c.Status == domain.CorrectionPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r CorrectionRepo) Resolve(ctx context.Context, id uuid.UUID, status domain.CorrectionStatus, approvedBy int64, at time.Time) (*domain.TimeCorrection, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.corrections[id]
	if !ok || c.Status != domain.CorrectionPending {
		return nil, domain.ErrNotFound
	}
	c.Status = status
	c.ApprovedBy = &approvedBy
	c.ProcessedAt = &at
	r.s.corrections[id] = c
	return &c, nil
}

type ScheduleRepo struct{ s *Store }

func (r ScheduleRepo) LockStaff(context.Context, int64) error { return nil }

func (r ScheduleRepo) Insert(ctx context.Context, sc domain.Schedule) error {
	defer r.s.lock(ctx)()
	if r.s.overlapsLocked(sc) {
		return domain.ErrConflict
	}
	r.s.schedules[sc.ID] = sc
	return nil
}

func (r ScheduleRepo) Update(ctx context.Context, sc domain.Schedule) (*domain.Schedule, error) {
	defer r.s.lock(ctx)()
	existing, ok := r.s.schedules[sc.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.s.overlapsLocked(sc) {
		return nil, domain.ErrConflict
	}
	sc.CreatedAt = existing.CreatedAt
	r.s.schedules[sc.ID] = sc
	return &sc, nil
}

// overlapsLocked mirrors the schedules_no_overlap exclusion constraint.
func (s *Store) overlapsLocked(sc domain.Schedule) bool {
	for _, other := range s.schedules {
		if other.ID == sc.ID || other.StaffID != sc.StaffID {
			continue
		}
		if sc.StartTime.Before(other.EndTime) && other.StartTime.Before(sc.EndTime) {
			return true
		}
	}
	return false
}

func (r ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.schedules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.schedules, id)
	return nil
}

func (r ScheduleRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	defer r.s.lock(ctx)()
	sc, ok := r.s.schedules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sc, nil
}

func (r ScheduleRepo) ListForStaff(ctx context.Context, staffID int64, from, to time.Time) ([]domain.Schedule, error) {
	return r.filter(ctx, func(sc domain.Schedule) bool {
		return sc.StaffID == staffID && sc.EndTime.After(from) && sc.StartTime.Before(to)
	}), nil
}

func (r ScheduleRepo) ListByBusiness(ctx context.Context, businessID int64, from, to time.Time) ([]domain.Schedule, error) {
	return r.filter(ctx, func(sc domain.Schedule) bool {
		return sc.BusinessID == businessID && sc.EndTime.After(from) && sc.StartTime.Before(to)
	}), nil
}

func (r ScheduleRepo) filter(ctx context.Context, keep func(domain.Schedule) bool) []domain.Schedule {
	defer r.s.lock(ctx)()
	var out []domain.Schedule
	for _, sc := range r.s.schedules {
		if keep(sc) {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

type TimeShiftRepo struct{ s *Store }

func (r TimeShiftRepo) Insert(ctx context.Context, ts domain.TimeShift) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.timeShifts {
		if existing.UserID == ts.UserID && existing.Status == domain.TimeShiftOpen {
			return domain.ErrConflict
		}
	}
	r.s.timeShifts[ts.ID] = ts
	return nil
}

func (r TimeShiftRepo) GetOpenByUser(ctx context.Context, userID int64) (*domain.TimeShift, error) {
	defer r.s.lock(ctx)()
	for _, ts := range r.s.timeShifts {
		if ts.UserID == userID && ts.Status == domain.TimeShiftOpen {
			return &ts, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r TimeShiftRepo) ListOpenByBusiness(ctx context.Context, businessID int64) ([]domain.TimeShift, error) {
	defer r.s.lock(ctx)()
	var out []domain.TimeShift
	for _, ts := range r.s.timeShifts {
		if ts.BusinessID == businessID && ts.Status == domain.TimeShiftOpen {
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockInAt.Before(out[j].ClockInAt) })
	return out, nil
}

func (r TimeShiftRepo) Close(ctx context.Context, id uuid.UUID, at time.Time) (*domain.TimeShift, error) {
	defer r.s.lock(ctx)()
	ts, ok := r.s.timeShifts[id]
	if !ok || ts.Status != domain.TimeShiftOpen {
		return nil, domain.ErrNotFound
	}
	ts.Status = domain.TimeShiftClosed
	ts.ClockOutAt = &at
	r.s.timeShifts[id] = ts
	return &ts, nil
}

type AuditSink struct{ s *Store }

func (a AuditSink) Record(ctx context.Context, rec domain.AuditRecord) error {
	defer a.s.lock(ctx)()
	rec.ID = int64(len(a.s.audit) + 1)
	a.s.audit = append(a.s.audit, rec)
	return nil
}
