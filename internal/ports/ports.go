package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
)

// HealthChecker is used to probe dependencies.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// TxManager runs fn inside one transaction. Nested calls join the outer one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditSink receives one record per state transition.
type AuditSink interface {
	Record(ctx context.Context, rec domain.AuditRecord) error
}

// Repositories return domain.ErrNotFound for missing rows and domain.ErrConflict
// when a uniqueness invariant would be broken.

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type ClockEventRepository interface {
	Insert(ctx context.Context, ev domain.ClockEvent) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ClockEvent, error)
	LatestForUser(ctx context.Context, userID int64) (*domain.ClockEvent, error)
}

type CloseShiftParams struct {
	ID            uuid.UUID
	ClockOutID    uuid.UUID
	Status        domain.ShiftStatus
	EndedAt       time.Time
	TotalHours    float64
	RegularHours  float64
	OvertimeHours float64
}

type UpdateShiftTimesParams struct {
	ID            uuid.UUID
	StartedAt     time.Time
	EndedAt       *time.Time
	TotalHours    float64
	RegularHours  float64
	OvertimeHours float64
}

type ShiftRepository interface {
	Insert(ctx context.Context, s domain.Shift) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Shift, error)
	GetActiveByUser(ctx context.Context, userID int64) (*domain.Shift, error)
	GetByClockEvent(ctx context.Context, eventID uuid.UUID) (*domain.Shift, error)
	// Close only matches a shift that is still active.
	Close(ctx context.Context, p CloseShiftParams) (*domain.Shift, error)
	UpdateTimes(ctx context.Context, p UpdateShiftTimesParams) (*domain.Shift, error)
	ListActiveStartedBefore(ctx context.Context, cutoff time.Time) ([]domain.Shift, error)
	ListByTimeShift(ctx context.Context, timeShiftID uuid.UUID) ([]domain.Shift, error)
	ListEndedBetween(ctx context.Context, businessID int64, from, to time.Time) ([]domain.Shift, error)
	// ListOverlapping returns the user's shifts intersecting [from, to). A nil
	// to is open-ended; active shifts count as open-ended too.
	ListOverlapping(ctx context.Context, userID int64, from time.Time, to *time.Time) ([]domain.Shift, error)
}

type BreakRepository interface {
	Insert(ctx context.Context, b domain.Break) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Break, error)
	GetOpenByShift(ctx context.Context, shiftID uuid.UUID) (*domain.Break, error)
	// End only matches a break that is still open.
	End(ctx context.Context, id uuid.UUID, endedAt time.Time) (*domain.Break, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID) ([]domain.Break, error)
}

type TimeCorrectionRepository interface {
	Insert(ctx context.Context, c domain.TimeCorrection) error
	Get(ctx context.Context, id uuid.UUID) (*domain.TimeCorrection, error)
	ListPending(ctx context.Context, businessID int64) ([]domain.TimeCorrection, error)
	// Resolve only matches a pending correction.
	Resolve(ctx context.Context, id uuid.UUID, status domain.CorrectionStatus, approvedBy int64, at time.Time) (*domain.TimeCorrection, error)
}

type ScheduleRepository interface {
	// LockStaff serializes schedule writes for one staff member until the tx ends.
	LockStaff(ctx context.Context, staffID int64) error
	Insert(ctx context.Context, s domain.Schedule) error
	Update(ctx context.Context, s domain.Schedule) (*domain.Schedule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	ListForStaff(ctx context.Context, staffID int64, from, to time.Time) ([]domain.Schedule, error)
	ListByBusiness(ctx context.Context, businessID int64, from, to time.Time) ([]domain.Schedule, error)
}

type TimeShiftRepository interface {
	Insert(ctx context.Context, ts domain.TimeShift) error
	GetOpenByUser(ctx context.Context, userID int64) (*domain.TimeShift, error)
	ListOpenByBusiness(ctx context.Context, businessID int64) ([]domain.TimeShift, error)
	// Close only matches an open time shift.
	Close(ctx context.Context, id uuid.UUID, at time.Time) (*domain.TimeShift, error)
}
