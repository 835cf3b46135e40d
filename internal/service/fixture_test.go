package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/repository/memstore"
)

const business = int64(10)

var (
	base    = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	manager = domain.Actor{ID: 3, BusinessID: business, Role: domain.RoleManager}
	staff1  = domain.Actor{ID: 1, BusinessID: business, Role: domain.RoleStaff}
	staff2  = domain.Actor{ID: 2, BusinessID: business, Role: domain.RoleStaff}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store       *memstore.Store
	clock       *testClock
	events      ClockEventLog
	breaks      BreakTracker
	shifts      ShiftLifecycle
	corrections TimeCorrectionWorkflow
	schedules   ScheduleService
	timeShifts  TimeShiftService
	timeClock   TimeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	for _, u := range []domain.User{
		{ID: 1, BusinessID: business, Name: "Ana", Role: domain.RoleStaff, Active: true},
		{ID: 2, BusinessID: business, Name: "Ben", Role: domain.RoleStaff, Active: true},
		{ID: 3, BusinessID: business, Name: "Mia", Role: domain.RoleManager, Active: true},
		{ID: 4, BusinessID: 20, Name: "Tom", Role: domain.RoleStaff, Active: true},
		{ID: 5, BusinessID: business, Name: "Old", Role: domain.RoleStaff, Active: false},
	} {
		store.PutUser(u)
	}

	clk := &testClock{now: base}
	svc := NewServices(memStores(store), Options{
		Policies: config.PolicySet{Default: config.DefaultPolicy()},
		Location: time.UTC,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      clk.Now,
	})
	return &fixture{
		store:       store,
		clock:       clk,
		events:      svc.Events,
		breaks:      svc.Breaks,
		shifts:      svc.Shifts,
		corrections: svc.Corrections,
		schedules:   svc.Schedules,
		timeShifts:  svc.TimeShifts,
		timeClock:   svc.TimeClock,
	}
}

func memStores(store *memstore.Store) Stores {
	return Stores{
		Users:       store.Users(),
		Events:      store.ClockEvents(),
		Shifts:      store.ShiftRepo(),
		Breaks:      store.Breaks(),
		Corrections: store.Corrections(),
		Schedules:   store.Schedules(),
		TimeShifts:  store.TimeShifts(),
		Audit:       store.Audit(),
		Tx:          store,
	}
}

func (f *fixture) clockIn(t *testing.T, userID int64) *ClockInResult {
	t.Helper()
	res, err := f.timeClock.ClockIn(context.Background(), ClockInput{UserID: userID, BusinessID: business, TerminalID: "pos-1"})
	if err != nil {
		t.Fatalf("clock in user %d: %v", userID, err)
	}
	return res
}

func (f *fixture) clockOut(t *testing.T, userID int64) *ClockOutResult {
	t.Helper()
	res, err := f.timeClock.ClockOut(context.Background(), ClockInput{UserID: userID, BusinessID: business, TerminalID: "pos-1"})
	if err != nil {
		t.Fatalf("clock out user %d: %v", userID, err)
	}
	return res
}

func (f *fixture) auditCount(action string) int {
	n := 0
	for _, rec := range f.store.AuditRecords() {
		if rec.Action == action {
			n++
		}
	}
	return n
}

func (f *fixture) activeShifts(userID int64) int {
	n := 0
	for _, sh := range f.store.Shifts() {
		if sh.UserID == userID && sh.Active() {
			n++
		}
	}
	return n
}
