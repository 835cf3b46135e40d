// Package scheduling validates planned shifts: duration bounds and overlap
// against the other schedules of the same staff member. It has no
// persistence side effects.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
)

const (
	DefaultMinDuration = 60 * time.Minute
	DefaultMaxDuration = 16 * time.Hour
)

// Interval is a half-open [Start, End) window.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Overlaps reports whether a and b share an instant. Touching boundaries
// (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Rules bounds the accepted shift length.
type Rules struct {
	MinDuration time.Duration
	MaxDuration time.Duration
}

func DefaultRules() Rules {
	return Rules{MinDuration: DefaultMinDuration, MaxDuration: DefaultMaxDuration}
}

// ValidateDuration rejects non-positive windows and lengths outside rules.
func ValidateDuration(iv Interval, rules Rules) error {
	d := iv.Duration()
	if d <= 0 {
		return &domain.DurationError{Duration: d, Min: rules.MinDuration, Max: rules.MaxDuration, Reason: "end must be after start"}
	}
	if d < rules.MinDuration || d > rules.MaxDuration {
		return &domain.DurationError{Duration: d, Min: rules.MinDuration, Max: rules.MaxDuration}
	}
	return nil
}

// FindConflict returns the first schedule in existing that overlaps candidate,
// skipping excludeID (the schedule being edited) and other staff members.
func FindConflict(staffID int64, candidate Interval, excludeID uuid.UUID, existing []domain.Schedule) *domain.Schedule {
	for i := range existing {
		s := existing[i]
		if s.StaffID != staffID || (excludeID != uuid.Nil && s.ID == excludeID) {
			continue
		}
		if Overlaps(candidate, Interval{Start: s.StartTime, End: s.EndTime}) {
			return &s
		}
	}
	return nil
}

// Validate checks duration first, then overlap. Errors are *domain.DurationError
// or *domain.OverlapError.
func Validate(staffID int64, candidate Interval, excludeID uuid.UUID, existing []domain.Schedule, rules Rules) error {
	if err := ValidateDuration(candidate, rules); err != nil {
		return err
	}
	if c := FindConflict(staffID, candidate, excludeID, existing); c != nil {
		return &domain.OverlapError{ConflictID: c.ID, ConflictStart: c.StartTime, ConflictEnd: c.EndTime}
	}
	return nil
}

// ResolveWallClock turns a calendar date plus local "HH:MM" start/end into an
// absolute interval. An end at or before the start crosses midnight, except
// identical times, which are rejected as ambiguous.
func ResolveWallClock(date time.Time, start, end string, loc *time.Location) (Interval, error) {
	if loc == nil {
		loc = time.Local
	}
	sh, sm, err := parseClock(start)
	if err != nil {
		return Interval{}, domain.Validationf("start time: %v", err)
	}
	eh, em, err := parseClock(end)
	if err != nil {
		return Interval{}, domain.Validationf("end time: %v", err)
	}
	y, mo, d := date.Date()
	iv := Interval{
		Start: time.Date(y, mo, d, sh, sm, 0, 0, loc),
		End:   time.Date(y, mo, d, eh, em, 0, 0, loc),
	}
	switch {
	case iv.End.Equal(iv.Start):
		return Interval{}, &domain.DurationError{Reason: "start and end are identical"}
	case iv.End.Before(iv.Start):
		iv.End = time.Date(y, mo, d+1, eh, em, 0, 0, loc)
	}
	return iv, nil
}

func parseClock(v string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not HH:MM", v)
	}
	return t.Hour(), t.Minute(), nil
}
