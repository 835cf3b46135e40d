package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

func TestSplitHours(t *testing.T) {
	cases := []struct {
		name                     string
		d                        time.Duration
		total, regular, overtime float64
	}{
		{"short", 4 * time.Hour, 4, 4, 0},
		{"exactly regular", 8 * time.Hour, 8, 8, 0},
		{"overtime", 10*time.Hour + 30*time.Minute, 10.5, 8, 2.5},
		{"ceiling", 16 * time.Hour, 16, 8, 8},
		{"negative clamps", -time.Hour, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, regular, overtime := SplitHours(tc.d, 8*time.Hour)
			if total != tc.total || regular != tc.regular || overtime != tc.overtime {
				t.Fatalf("SplitHours(%s) = %v/%v/%v, want %v/%v/%v", tc.d, total, regular, overtime, tc.total, tc.regular, tc.overtime)
			}
		})
	}
}

func TestOpenCloseRoundTripHours(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		d := time.Duration(1+rng.Intn(16*60)) * time.Minute
		in := f.clockIn(t, 1)
		f.clock.Advance(d)
		out := f.clockOut(t, 1)

		want := out.Event.Timestamp.Sub(in.Event.Timestamp).Hours()
		if out.Shift.TotalHours != want {
			t.Fatalf("total hours = %v, want %v", out.Shift.TotalHours, want)
		}
		if math.Abs(out.Shift.RegularHours+out.Shift.OvertimeHours-out.Shift.TotalHours) > 1e-9 {
			t.Fatalf("split %v + %v != %v", out.Shift.RegularHours, out.Shift.OvertimeHours, out.Shift.TotalHours)
		}
		if out.Shift.RegularHours > 8 {
			t.Fatalf("regular hours %v exceed threshold", out.Shift.RegularHours)
		}
		if out.Shift.Status != domain.ShiftCompleted {
			t.Fatalf("status = %s, want completed", out.Shift.Status)
		}
		f.clock.Advance(time.Minute)
	}
}

func TestOpenRejectsSecondActiveShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.clockIn(t, 1)

	f.clock.Advance(time.Minute)
	if _, err := f.timeClock.ClockIn(ctx, ClockInput{UserID: 1, BusinessID: business}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict from clock-in, got %v", err)
	}

	// Opening directly with a fresh clock-in event hits the store guard.
	ev, err := f.events.Record(ctx, RecordClockEventInput{UserID: 1, BusinessID: business, Type: domain.ClockIn, Method: domain.MethodManual})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.shifts.Open(ctx, OpenShiftInput{UserID: 1, BusinessID: business, ClockInEventID: ev.ID}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict from open, got %v", err)
	}
	active, err := f.shifts.GetActive(ctx, 1)
	if err != nil || active == nil || active.ID != first.Shift.ID {
		t.Fatalf("active shift = %v, %v; want %s", active, err, first.Shift.ID)
	}
}

func TestCloseRequiresActiveShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.shifts.Close(ctx, uuid.New(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing shift: expected ErrNotFound, got %v", err)
	}

	f.clockIn(t, 1)
	f.clock.Advance(time.Hour)
	out := f.clockOut(t, 1)

	f.clock.Advance(time.Minute)
	ev, err := f.events.Record(ctx, RecordClockEventInput{UserID: 1, BusinessID: business, Type: domain.ClockOut, Method: domain.MethodManual})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.shifts.Close(ctx, out.Shift.ID, ev.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("closed shift: expected ErrNotFound, got %v", err)
	}
	if n := f.auditCount(ActionShiftCompleted); n != 1 {
		t.Fatalf("shift.completed audits = %d, want 1", n)
	}
}

func TestClockOutWithoutActiveShift(t *testing.T) {
	f := newFixture(t)
	_, err := f.timeClock.ClockOut(context.Background(), ClockInput{UserID: 1, BusinessID: business})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := len(f.store.Events()); n != 0 {
		t.Fatalf("events = %d, want 0", n)
	}
}

func TestForceClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)
	f.clock.Advance(time.Hour)
	if _, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1, Type: domain.BreakMeal}); err != nil {
		t.Fatalf("start break: %v", err)
	}
	f.clock.Advance(time.Hour)

	if _, err := f.timeClock.ForceClockOut(ctx, staff2, 1, "left early"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("staff force close: expected ErrUnauthorized, got %v", err)
	}
	other := domain.Actor{ID: 9, BusinessID: 20, Role: domain.RoleManager}
	if _, err := f.timeClock.ForceClockOut(ctx, other, 1, "wrong business"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign manager: expected ErrNotFound, got %v", err)
	}

	res, err := f.timeClock.ForceClockOut(ctx, manager, 1, "forgot to clock out")
	if err != nil {
		t.Fatalf("force close: %v", err)
	}
	if res.Event.Method != domain.MethodManualForced || res.Event.Type != domain.ClockOut {
		t.Fatalf("synthetic event = %s/%s", res.Event.Type, res.Event.Method)
	}
	if res.Shift.Status != domain.ShiftForcedEnded || res.Shift.TotalHours != 2 {
		t.Fatalf("shift = %s %v hours, want forced_ended 2", res.Shift.Status, res.Shift.TotalHours)
	}
	open, err := f.breaks.GetOpenBreak(ctx, in.Shift.ID)
	if err != nil || open != nil {
		t.Fatalf("open break after force close = %v, %v", open, err)
	}
	if n := f.auditCount(ActionShiftForceEnded); n != 1 {
		t.Fatalf("shift.force_ended audits = %d, want 1", n)
	}

	if _, err := f.timeClock.ForceClockOut(ctx, manager, 1, "again"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second force close: expected ErrNotFound, got %v", err)
	}
}

// A user clocks in at 09:00, starts a break at 12:00 and never returns. The
// sweep at 09:00 the next day closes the shift at the 16h ceiling.
func TestAutoCloseStaleForgottenClockOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)
	f.clock.Advance(3 * time.Hour)
	br, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1})
	if err != nil {
		t.Fatalf("start break: %v", err)
	}

	f.clock.Set(base.Add(24 * time.Hour))
	closed, err := f.shifts.AutoCloseStale(ctx, f.clock.Now(), 16*time.Hour)
	if err != nil {
		t.Fatalf("auto close: %v", err)
	}
	if len(closed) != 1 || closed[0].ID != in.Shift.ID {
		t.Fatalf("closed = %+v, want shift %s", closed, in.Shift.ID)
	}
	sh := closed[0]
	wantEnd := base.Add(16 * time.Hour)
	if sh.Status != domain.ShiftForcedEnded || sh.EndedAt == nil || !sh.EndedAt.Equal(wantEnd) {
		t.Fatalf("shift = %s ended %v, want forced_ended at %s", sh.Status, sh.EndedAt, wantEnd)
	}
	if math.Abs(sh.TotalHours-16) > 1e-9 {
		t.Fatalf("total hours = %v, want 16", sh.TotalHours)
	}

	ended, err := f.store.Breaks().Get(ctx, br.ID)
	if err != nil {
		t.Fatalf("get break: %v", err)
	}
	if ended.EndedAt == nil || !ended.EndedAt.Equal(wantEnd) {
		t.Fatalf("break ended at %v, want %s", ended.EndedAt, wantEnd)
	}

	if n := f.auditCount(ActionShiftAutoClosed); n != 1 {
		t.Fatalf("shift.auto_closed audits = %d, want 1", n)
	}
	breakIdx, closeIdx := -1, -1
	for i, rec := range f.store.AuditRecords() {
		switch rec.Action {
		case ActionBreakEnded:
			breakIdx = i
		case ActionShiftAutoClosed:
			closeIdx = i
			if rec.ActorID != nil {
				t.Fatalf("auto close actor = %d, want system", *rec.ActorID)
			}
		}
	}
	if breakIdx < 0 || breakIdx > closeIdx {
		t.Fatalf("break must end before the shift closes (break %d, close %d)", breakIdx, closeIdx)
	}

	var auto *domain.ClockEvent
	for _, ev := range f.store.Events() {
		if ev.Method == domain.MethodAuto {
			ev := ev
			auto = &ev
		}
	}
	if auto == nil || auto.Type != domain.ClockOut || !auto.Timestamp.Equal(wantEnd) {
		t.Fatalf("synthetic auto event = %+v", auto)
	}
}

func TestAutoCloseStaleIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clockIn(t, 1)
	f.clock.Advance(time.Minute)
	f.clockIn(t, 2)

	f.clock.Advance(17 * time.Hour)
	first, err := f.shifts.AutoCloseStale(ctx, f.clock.Now(), 16*time.Hour)
	if err != nil || len(first) != 2 {
		t.Fatalf("first sweep = %d shifts, %v; want 2", len(first), err)
	}
	second, err := f.shifts.AutoCloseStale(ctx, f.clock.Now(), 16*time.Hour)
	if err != nil || len(second) != 0 {
		t.Fatalf("second sweep = %d shifts, %v; want 0", len(second), err)
	}
	if n := f.auditCount(ActionShiftAutoClosed); n != 2 {
		t.Fatalf("shift.auto_closed audits = %d, want 2", n)
	}
}

func TestAutoCloseStaleLeavesFreshShifts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clockIn(t, 1)
	f.clock.Advance(15 * time.Hour)
	closed, err := f.shifts.AutoCloseStale(ctx, f.clock.Now(), 16*time.Hour)
	if err != nil || len(closed) != 0 {
		t.Fatalf("sweep = %d, %v; want none", len(closed), err)
	}
	if f.activeShifts(1) != 1 {
		t.Fatalf("fresh shift should stay active")
	}
}

func TestAutoCloseStaleUsesBusinessPolicyWhenThresholdUnset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	policy := f.shifts.Policies.Default
	policy.StaleAfter = 10 * time.Hour
	f.shifts.Policies.Businesses = map[int64]config.ShiftPolicy{business: policy}

	in := f.clockIn(t, 1)
	f.clock.Advance(11 * time.Hour)
	closed, err := f.shifts.AutoCloseStale(ctx, f.clock.Now(), 0)
	if err != nil || len(closed) != 1 {
		t.Fatalf("sweep = %d, %v; want 1", len(closed), err)
	}
	if want := in.Event.Timestamp.Add(10 * time.Hour); !closed[0].EndedAt.Equal(want) {
		t.Fatalf("ended at %s, want %s", closed[0].EndedAt, want)
	}
}

func TestConcurrentClockInLeavesOneActiveShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const attempts = 25

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.timeClock.ClockIn(ctx, ClockInput{UserID: 1, BusinessID: business})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("successes=%d conflicts=%d", successes, conflicts)
	}
	if n := f.activeShifts(1); n != 1 {
		t.Fatalf("active shifts = %d, want 1", n)
	}
	if n := f.auditCount(ActionShiftOpened); n != 1 {
		t.Fatalf("shift.opened audits = %d, want 1", n)
	}
}

func TestRandomClockSequencesKeepOneActiveShift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	users := []int64{1, 2}

	for step := 0; step < 300; step++ {
		f.clock.Advance(time.Duration(1+rng.Intn(90)) * time.Minute)
		user := users[rng.Intn(len(users))]
		var err error
		switch rng.Intn(4) {
		case 0, 1:
			_, err = f.timeClock.ClockIn(ctx, ClockInput{UserID: user, BusinessID: business})
		case 2:
			_, err = f.timeClock.ClockOut(ctx, ClockInput{UserID: user, BusinessID: business})
		case 3:
			_, err = f.timeClock.ForceClockOut(ctx, manager, user, "random")
		}
		if err != nil && !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("step %d: unexpected error %v", step, err)
		}
		for _, u := range users {
			if n := f.activeShifts(u); n > 1 {
				t.Fatalf("step %d: user %d has %d active shifts", step, u, n)
			}
		}
	}
}

// clockOutDuringScan lets a manual clock-out land between the sweeper's
// candidate scan and its close.
type clockOutDuringScan struct {
	ports.ShiftRepository
	after func()
}

func (r clockOutDuringScan) ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Shift, error) {
	shifts, err := r.ShiftRepository.ListActiveStartedBefore(ctx, cutoff)
	if err == nil && r.after != nil {
		r.after()
	}
	return shifts, err
}

func TestAutoCloseSkipsShiftClosedAfterScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clockIn(t, 1)
	f.clock.Advance(20 * time.Hour)

	sweep := f.shifts
	sweep.Shifts = clockOutDuringScan{ShiftRepository: f.shifts.Shifts, after: func() { f.clockOut(t, 1) }}
	closed, err := sweep.AutoCloseStale(ctx, f.clock.Now(), 16*time.Hour)
	if err != nil {
		t.Fatalf("auto close: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("closed = %+v, want none", closed)
	}
	for _, ev := range f.store.Events() {
		if ev.Method == domain.MethodAuto {
			t.Fatalf("auto clock event persisted: %+v", ev)
		}
	}
	if n := f.auditCount(ActionShiftCompleted); n != 1 {
		t.Fatalf("shift.completed audits = %d, want 1", n)
	}
	if n := f.auditCount(ActionShiftAutoClosed); n != 0 {
		t.Fatalf("shift.auto_closed audits = %d, want 0", n)
	}
}

// breakEndedConcurrently hands out the open break and ends it underneath the
// caller, the way a competing transaction would.
type breakEndedConcurrently struct {
	ports.BreakRepository
	at time.Time
}

func (r breakEndedConcurrently) GetOpenByShift(ctx context.Context, shiftID uuid.UUID) (*domain.Break, error) {
	b, err := r.BreakRepository.GetOpenByShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if _, err := r.BreakRepository.End(ctx, b.ID, r.at); err != nil {
		return nil, err
	}
	return b, nil
}

func TestCloseToleratesBreakEndedConcurrently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)
	f.clock.Advance(2 * time.Hour)
	br, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1})
	if err != nil {
		t.Fatalf("start break: %v", err)
	}
	f.clock.Advance(20 * time.Hour)

	sweep := f.shifts
	sweep.Breaks.Breaks = breakEndedConcurrently{BreakRepository: f.store.Breaks(), at: base.Add(3 * time.Hour)}
	closed, err := sweep.AutoCloseStale(ctx, f.clock.Now(), 16*time.Hour)
	if err != nil {
		t.Fatalf("auto close: %v", err)
	}
	if len(closed) != 1 || closed[0].Status != domain.ShiftForcedEnded {
		t.Fatalf("closed = %+v, want one forced_ended shift", closed)
	}
	ended, err := f.store.Breaks().Get(ctx, br.ID)
	if err != nil || ended.EndedAt == nil || !ended.EndedAt.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("break = %+v, %v; want ended by the competing transaction", ended, err)
	}
	if n := f.auditCount(ActionBreakEnded); n != 0 {
		t.Fatalf("break.ended audits = %d, want 0 from the close path", n)
	}
}
