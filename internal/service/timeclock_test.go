package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"shiftclock-backend/internal/domain"
)

func TestClockInScheduleWarnings(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"on time", scheduleDay.Add(9*time.Hour + 5*time.Minute), ""},
		{"inside early grace", scheduleDay.Add(8*time.Hour + 50*time.Minute), ""},
		{"early", scheduleDay.Add(8 * time.Hour), WarningEarly},
		{"late", scheduleDay.Add(9*time.Hour + 30*time.Minute), WarningLate},
		{"unscheduled", scheduleDay.Add(20 * time.Hour), WarningUnscheduled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			sc := mustCreate(t, f, wallClock(1, "09:00", "17:00"))
			f.clock.Set(tc.at)
			res := f.clockIn(t, 1)

			if tc.want == "" {
				if len(res.Warnings) != 0 {
					t.Fatalf("unexpected warnings %+v", res.Warnings)
				}
				return
			}
			if len(res.Warnings) != 1 || res.Warnings[0].Code != tc.want {
				t.Fatalf("warnings = %+v, want %s", res.Warnings, tc.want)
			}
			if tc.want != WarningUnscheduled && (res.Warnings[0].ScheduleID == nil || *res.Warnings[0].ScheduleID != sc.ID.String()) {
				t.Fatalf("warning should name schedule %s", sc.ID)
			}
		})
	}
}

func TestClockInChecksUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		name   string
		in     ClockInput
		target error
	}{
		{"unknown user", ClockInput{UserID: 99, BusinessID: business}, domain.ErrNotFound},
		{"other business", ClockInput{UserID: 4, BusinessID: business}, domain.ErrNotFound},
		{"deactivated", ClockInput{UserID: 5, BusinessID: business}, domain.ErrInvalidState},
		{"logout method", ClockInput{UserID: 1, BusinessID: business, Method: domain.MethodLogout}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.timeClock.ClockIn(ctx, tc.in); !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
	if n := len(f.store.Events()); n != 0 {
		t.Fatalf("rejected clock-ins recorded %d events", n)
	}
}

func TestVerifyPIN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	pin := string(hash)
	f.store.PutUser(domain.User{ID: 7, BusinessID: business, Name: "Pia", Role: domain.RoleStaff, PinHash: &pin, Active: true})

	u, err := f.timeClock.VerifyPIN(ctx, business, 7, "4321")
	if err != nil || u.ID != 7 {
		t.Fatalf("verify = %v, %v", u, err)
	}
	cases := []struct {
		name       string
		businessID int64
		userID     int64
		pin        string
	}{
		{"wrong pin", business, 7, "0000"},
		{"wrong business", 20, 7, "4321"},
		{"no pin set", business, 1, "4321"},
		{"unknown user", business, 99, "4321"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.timeClock.VerifyPIN(ctx, tc.businessID, tc.userID, tc.pin); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
