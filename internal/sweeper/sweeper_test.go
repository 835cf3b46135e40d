package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/repository/memstore"
	"shiftclock-backend/internal/service"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeShifts struct {
	mu        sync.Mutex
	calls     int
	threshold time.Duration
	closed    []domain.Shift
	err       error
	tick      chan struct{}
}

func (f *fakeShifts) AutoCloseStale(_ context.Context, _ time.Time, threshold time.Duration) ([]domain.Shift, error) {
	f.mu.Lock()
	f.calls++
	f.threshold = threshold
	f.mu.Unlock()
	if f.tick != nil {
		select {
		case f.tick <- struct{}{}:
		default:
		}
	}
	return f.closed, f.err
}

type fakePeriods struct {
	mu     sync.Mutex
	called []int64
	handle func(ctx context.Context, businessID int64) ([]domain.TimeShift, error)
}

func (f *fakePeriods) CloseIdle(ctx context.Context, businessID int64, _ []uuid.UUID, _ time.Time) ([]domain.TimeShift, error) {
	f.mu.Lock()
	f.called = append(f.called, businessID)
	f.mu.Unlock()
	return f.handle(ctx, businessID)
}

func shiftIn(businessID int64) domain.Shift {
	ts := uuid.New()
	return domain.Shift{ID: uuid.New(), BusinessID: businessID, TimeShiftID: &ts, Status: domain.ShiftForcedEnded}
}

func TestTickIsolatesFailingBusinesses(t *testing.T) {
	shifts := &fakeShifts{closed: []domain.Shift{shiftIn(3), shiftIn(1), shiftIn(2), shiftIn(1)}}
	periods := &fakePeriods{handle: func(_ context.Context, businessID int64) ([]domain.TimeShift, error) {
		switch businessID {
		case 1:
			return nil, errors.New("database unavailable")
		case 2:
			panic("corrupt row")
		}
		return []domain.TimeShift{{ID: uuid.New(), BusinessID: businessID, Status: domain.TimeShiftClosed}}, nil
	}}
	s := Sweeper{Shifts: shifts, Periods: periods, Threshold: 16 * time.Hour, Logger: quiet}

	res := s.Tick(context.Background())
	if res.Businesses != 3 || res.Failures != 2 {
		t.Fatalf("businesses=%d failures=%d, want 3 and 2", res.Businesses, res.Failures)
	}
	if len(res.Closed) != 4 || len(res.Periods) != 1 || res.Periods[0].BusinessID != 3 {
		t.Fatalf("result = %+v", res)
	}
	if want := []int64{1, 2, 3}; len(periods.called) != 3 || periods.called[0] != want[0] || periods.called[2] != want[2] {
		t.Fatalf("cascade order = %v, want %v", periods.called, want)
	}
	if shifts.threshold != 16*time.Hour {
		t.Fatalf("threshold = %s", shifts.threshold)
	}
}

func TestTickBoundsEachBusiness(t *testing.T) {
	shifts := &fakeShifts{closed: []domain.Shift{shiftIn(1), shiftIn(2)}}
	periods := &fakePeriods{handle: func(ctx context.Context, businessID int64) ([]domain.TimeShift, error) {
		if businessID == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []domain.TimeShift{{ID: uuid.New(), BusinessID: businessID}}, nil
	}}
	s := Sweeper{Shifts: shifts, Periods: periods, BusinessTimeout: 20 * time.Millisecond, Logger: quiet}

	start := time.Now()
	res := s.Tick(context.Background())
	if time.Since(start) > 2*time.Second {
		t.Fatalf("tick blocked on a slow business")
	}
	if res.Failures != 1 || len(res.Periods) != 1 || res.Periods[0].BusinessID != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestTickContinuesAfterPartialAutoCloseFailure(t *testing.T) {
	shifts := &fakeShifts{closed: []domain.Shift{shiftIn(1)}, err: errors.New("shift x: boom")}
	periods := &fakePeriods{handle: func(context.Context, int64) ([]domain.TimeShift, error) { return nil, nil }}
	res := Sweeper{Shifts: shifts, Periods: periods, Logger: quiet}.Tick(context.Background())
	if res.Failures != 1 || len(periods.called) != 1 {
		t.Fatalf("result = %+v, cascades = %v", res, periods.called)
	}
}

func TestRunTicksImmediatelyAndStops(t *testing.T) {
	shifts := &fakeShifts{tick: make(chan struct{}, 1)}
	s := Sweeper{Shifts: shifts, Interval: 5 * time.Millisecond, Logger: quiet}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-shifts.tick:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d never happened", i)
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}

func TestSweepClosesForgottenShiftAndPeriod(t *testing.T) {
	store := memstore.New()
	store.PutUser(domain.User{ID: 1, BusinessID: 10, Role: domain.RoleStaff, Active: true})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	policies := config.PolicySet{Default: config.DefaultPolicy()}

	events := service.ClockEventLog{Events: store.ClockEvents(), Tx: store, Audit: store.Audit(), Now: clock}
	breaks := service.BreakTracker{Breaks: store.Breaks(), Shifts: store.ShiftRepo(), Tx: store, Audit: store.Audit(), Now: clock}
	shifts := service.ShiftLifecycle{Shifts: store.ShiftRepo(), Events: events, Breaks: breaks, Tx: store, Audit: store.Audit(), Policies: policies, Logger: quiet, Now: clock}
	periods := service.TimeShiftService{TimeShifts: store.TimeShifts(), Shifts: store.ShiftRepo(), Breaks: breaks, Tx: store, Audit: store.Audit(), Logger: quiet, Now: clock}
	tc := service.TimeClock{Users: store.Users(), Events: events, Shifts: shifts, TimeShifts: periods, Tx: store, Policies: policies, Logger: quiet, Now: clock}

	ctx := context.Background()
	in, err := tc.ClockIn(ctx, service.ClockInput{UserID: 1, BusinessID: 10})
	if err != nil {
		t.Fatalf("clock in: %v", err)
	}
	now = now.Add(3 * time.Hour)
	if _, err := breaks.Start(ctx, service.StartBreakInput{ShiftID: in.Shift.ID, UserID: 1}); err != nil {
		t.Fatalf("start break: %v", err)
	}

	now = now.Add(21 * time.Hour)
	s := Sweeper{Shifts: shifts, Periods: periods, Threshold: 16 * time.Hour, Logger: quiet, Now: clock}
	res := s.Tick(ctx)
	if res.Failures != 0 || len(res.Closed) != 1 || len(res.Periods) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Closed[0].TotalHours != 16 {
		t.Fatalf("total hours = %v, want 16", res.Closed[0].TotalHours)
	}
	if _, err := store.TimeShifts().GetOpenByUser(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("period should be closed, got %v", err)
	}

	again := s.Tick(ctx)
	if len(again.Closed) != 0 || len(again.Periods) != 0 {
		t.Fatalf("second tick = %+v", again)
	}
	autoClosed := 0
	for _, rec := range store.AuditRecords() {
		if rec.Action == service.ActionShiftAutoClosed {
			autoClosed++
		}
	}
	if autoClosed != 1 {
		t.Fatalf("shift.auto_closed audits = %d, want 1", autoClosed)
	}
}
