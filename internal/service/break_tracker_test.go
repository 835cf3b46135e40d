package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
)

func TestBreakStartDefaults(t *testing.T) {
	unpaid := false
	cases := []struct {
		name     string
		in       StartBreakInput
		wantType domain.BreakType
		wantPaid bool
	}{
		{"defaults to paid rest", StartBreakInput{}, domain.BreakRest, true},
		{"meal is unpaid", StartBreakInput{Type: domain.BreakMeal}, domain.BreakMeal, false},
		{"other is unpaid", StartBreakInput{Type: domain.BreakOther}, domain.BreakOther, false},
		{"explicit flag wins", StartBreakInput{Type: domain.BreakRest, IsPaid: &unpaid}, domain.BreakRest, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			in := f.clockIn(t, 1)
			tc.in.ShiftID, tc.in.UserID = in.Shift.ID, 1
			b, err := f.breaks.Start(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			if b.Type != tc.wantType || b.IsPaid != tc.wantPaid || !b.Open() {
				t.Fatalf("break = %+v", b)
			}
		})
	}
}

func TestBreakStartRejectsSecondOpenBreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)
	first, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(time.Minute)
	if _, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1, Type: domain.BreakMeal}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	open, err := f.breaks.GetOpenBreak(ctx, in.Shift.ID)
	if err != nil || open == nil || open.ID != first.ID {
		t.Fatalf("open break = %v, %v", open, err)
	}
	if n := f.auditCount(ActionBreakStarted); n != 1 {
		t.Fatalf("break.started audits = %d, want 1", n)
	}
}

func TestBreakStartPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)

	if _, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: uuid.New(), UserID: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing shift: expected ErrNotFound, got %v", err)
	}
	if _, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 2}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other user's shift: expected ErrNotFound, got %v", err)
	}
	if _, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1, Type: "smoke"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad type: expected ErrValidation, got %v", err)
	}

	f.clock.Advance(time.Hour)
	f.clockOut(t, 1)
	if _, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("closed shift: expected ErrInvalidState, got %v", err)
	}
}

func TestBreakEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)
	b, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(15 * time.Minute)

	ended, err := f.breaks.End(ctx, b.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.EndedAt == nil || !ended.EndedAt.Equal(base.Add(15*time.Minute)) {
		t.Fatalf("ended at %v", ended.EndedAt)
	}
	if _, err := f.breaks.End(ctx, b.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second end: expected ErrInvalidState, got %v", err)
	}
	if _, err := f.breaks.End(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing break: expected ErrNotFound, got %v", err)
	}

	// A new break may start once the previous one ended.
	if _, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	list, err := f.breaks.ListForShift(ctx, in.Shift.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("breaks = %d, %v; want 2", len(list), err)
	}
}

func TestClockOutEndsOpenBreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)
	f.clock.Advance(time.Hour)
	b, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(time.Hour)
	out := f.clockOut(t, 1)

	got, err := f.store.Breaks().Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(out.Event.Timestamp) {
		t.Fatalf("break ended at %v, want %s", got.EndedAt, out.Event.Timestamp)
	}
}

func TestGetOpenBreakNone(t *testing.T) {
	f := newFixture(t)
	open, err := f.breaks.GetOpenBreak(context.Background(), uuid.New())
	if err != nil || open != nil {
		t.Fatalf("GetOpenBreak = %v, %v; want nil, nil", open, err)
	}
}

func TestBreakEndAsChecksOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.clockIn(t, 1)
	b, err := f.breaks.Start(ctx, StartBreakInput{ShiftID: in.Shift.ID, UserID: 1})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(10 * time.Minute)

	if _, err := f.breaks.EndAs(ctx, staff2, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other staff: expected ErrNotFound, got %v", err)
	}
	foreign := domain.Actor{ID: 9, BusinessID: 20, Role: domain.RoleManager}
	if _, err := f.breaks.EndAs(ctx, foreign, b.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign manager: expected ErrNotFound, got %v", err)
	}
	ended, err := f.breaks.EndAs(ctx, manager, b.ID)
	if err != nil || ended.Open() {
		t.Fatalf("manager end = %+v, %v", ended, err)
	}
}
