package scheduling

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func mustResolve(t *testing.T, start, end string) Interval {
	t.Helper()
	iv, err := ResolveWallClock(day, start, end, time.UTC)
	if err != nil {
		t.Fatalf("ResolveWallClock(%s, %s): %v", start, end, err)
	}
	return iv
}

func schedule(staffID int64, iv Interval) domain.Schedule {
	return domain.Schedule{ID: uuid.New(), StaffID: staffID, StartTime: iv.Start, EndTime: iv.End}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		a := Interval{Start: at(0, rng.Intn(48*60))}
		a.End = a.Start.Add(time.Duration(1+rng.Intn(16*60)) * time.Minute)
		b := Interval{Start: at(0, rng.Intn(48*60))}
		b.End = b.Start.Add(time.Duration(1+rng.Intn(16*60)) * time.Minute)
		if Overlaps(a, b) != Overlaps(b, a) {
			t.Fatalf("asymmetric overlap for %v and %v", a, b)
		}
	}
}

func TestBackToBackBoundary(t *testing.T) {
	morning := mustResolve(t, "09:00", "17:00")
	cases := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{"starts exactly at end", "17:00", "22:00", false},
		{"starts one minute before end", "16:59", "22:00", true},
		{"ends exactly at start", "05:00", "09:00", false},
		{"contained", "10:00", "12:00", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(morning, mustResolve(t, tc.start, tc.end)); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOvernightResolution(t *testing.T) {
	night := mustResolve(t, "22:00", "06:00")
	if want := day.Add(30 * time.Hour); !night.End.Equal(want) {
		t.Fatalf("overnight end = %s, want %s", night.End, want)
	}
	if night.Duration() != 8*time.Hour {
		t.Fatalf("overnight duration = %s, want 8h", night.Duration())
	}
	// 05:00-09:00 on the following morning falls inside 22:00 -> 06:00.
	nextMorning := Interval{Start: day.Add(29 * time.Hour), End: day.Add(33 * time.Hour)}
	if !Overlaps(night, nextMorning) {
		t.Fatalf("expected 22:00-06:00 to overlap next-day 05:00-09:00")
	}
	existing := []domain.Schedule{schedule(1, night)}
	err := Validate(1, nextMorning, uuid.Nil, existing, DefaultRules())
	var overlap *domain.OverlapError
	if !errors.As(err, &overlap) || overlap.ConflictID != existing[0].ID {
		t.Fatalf("expected overlap with %s, got %v", existing[0].ID, err)
	}
}

func TestIdenticalStartEndRejected(t *testing.T) {
	_, err := ResolveWallClock(day, "09:00", "09:00", time.UTC)
	var derr *domain.DurationError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DurationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("duration error should be a validation error")
	}
}

func TestResolveWallClockRejectsBadFormat(t *testing.T) {
	if _, err := ResolveWallClock(day, "9am", "17:00", time.UTC); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDurationBounds(t *testing.T) {
	cases := []struct {
		name string
		d    time.Duration
		ok   bool
	}{
		{"exactly 60 minutes", 60 * time.Minute, true},
		{"59 minutes", 59 * time.Minute, false},
		{"exactly 16 hours", 16 * time.Hour, true},
		{"16 hours 1 minute", 16*time.Hour + time.Minute, false},
		{"negative", -time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			iv := Interval{Start: at(6, 0), End: at(6, 0).Add(tc.d)}
			err := ValidateDuration(iv, DefaultRules())
			if tc.ok && err != nil {
				t.Fatalf("expected accepted, got %v", err)
			}
			if !tc.ok {
				var derr *domain.DurationError
				if !errors.As(err, &derr) {
					t.Fatalf("expected DurationError, got %v", err)
				}
				if derr.Duration != tc.d {
					t.Fatalf("reported duration = %s, want %s", derr.Duration, tc.d)
				}
			}
		})
	}
}

func TestValidateExcludesEditedScheduleAndOtherStaff(t *testing.T) {
	iv := mustResolve(t, "09:00", "17:00")
	own := schedule(1, iv)
	other := schedule(2, iv)
	existing := []domain.Schedule{own, other}

	if err := Validate(1, mustResolve(t, "10:00", "18:00"), own.ID, existing, DefaultRules()); err != nil {
		t.Fatalf("editing own schedule should not conflict: %v", err)
	}
	if err := Validate(1, mustResolve(t, "10:00", "18:00"), uuid.Nil, existing, DefaultRules()); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict with own schedule, got %v", err)
	}
	if err := Validate(3, iv, uuid.Nil, existing, DefaultRules()); err != nil {
		t.Fatalf("different staff should not conflict: %v", err)
	}
}

func TestValidateChecksDurationBeforeOverlap(t *testing.T) {
	iv := mustResolve(t, "09:00", "17:00")
	existing := []domain.Schedule{schedule(1, iv)}
	short := Interval{Start: at(10, 0), End: at(10, 30)}
	err := Validate(1, short, uuid.Nil, existing, DefaultRules())
	var derr *domain.DurationError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DurationError before overlap, got %v", err)
	}
}
