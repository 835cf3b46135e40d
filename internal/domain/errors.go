package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation error")
)

// OverlapError names the schedule a candidate collides with.
type OverlapError struct {
	ConflictID    uuid.UUID
	ConflictStart time.Time
	ConflictEnd   time.Time
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("schedule overlaps %s (%s - %s)", e.ConflictID,
		e.ConflictStart.Format(time.RFC3339), e.ConflictEnd.Format(time.RFC3339))
}

func (e *OverlapError) Is(target error) bool { return target == ErrConflict }

// DurationError reports a shift length outside the allowed bounds.
type DurationError struct {
	Duration time.Duration
	Min      time.Duration
	Max      time.Duration
	Reason   string
}

func (e *DurationError) Error() string {
	if e.Reason != "" {
		return "invalid shift duration: " + e.Reason
	}
	return fmt.Sprintf("invalid shift duration %s (allowed %s to %s)", e.Duration, e.Min, e.Max)
}

func (e *DurationError) Is(target error) bool { return target == ErrValidation }

// Validationf builds an ErrValidation with a message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
