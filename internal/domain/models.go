package domain

import (
	"time"

	"github.com/google/uuid"
)

// Enumerations
const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleStaff   UserRole = "staff"

	ClockIn  ClockEventType = "in"
	ClockOut ClockEventType = "out"

	MethodLogin        ClockMethod = "login"
	MethodLogout       ClockMethod = "logout"
	MethodManual       ClockMethod = "manual"
	MethodManualForced ClockMethod = "manual_forced"
	MethodAuto         ClockMethod = "auto"

	ShiftActive      ShiftStatus = "active"
	ShiftCompleted   ShiftStatus = "completed"
	ShiftForcedEnded ShiftStatus = "forced_ended"

	BreakMeal  BreakType = "meal"
	BreakRest  BreakType = "rest"
	BreakOther BreakType = "other"

	CorrectionClockIn  CorrectionType = "clock_in"
	CorrectionClockOut CorrectionType = "clock_out"

	CorrectionPending  CorrectionStatus = "pending"
	CorrectionApproved CorrectionStatus = "approved"
	CorrectionRejected CorrectionStatus = "rejected"

	ScheduleUpcoming  ScheduleStatus = "upcoming"
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCompleted ScheduleStatus = "completed"

	TimeShiftOpen   TimeShiftStatus = "open"
	TimeShiftClosed TimeShiftStatus = "closed"
)

type UserRole string
type ClockEventType string
type ClockMethod string
type ShiftStatus string
type BreakType string
type CorrectionType string
type CorrectionStatus string
type ScheduleStatus string
type TimeShiftStatus string

// HasRole reports whether r is one of roles.
func (r UserRole) HasRole(roles ...UserRole) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsManager reports manager or admin capability.
func (r UserRole) IsManager() bool {
	return r.HasRole(RoleManager, RoleAdmin)
}

func (t ClockEventType) Valid() bool { return t == ClockIn || t == ClockOut }

// Forced reports whether a clock-out with this method ends the shift as forced.
func (m ClockMethod) Forced() bool { return m == MethodManualForced || m == MethodAuto }

func (t BreakType) Valid() bool {
	return t == BreakMeal || t == BreakRest || t == BreakOther
}

// DefaultPaid is the paid flag used when a break is started without one.
func (t BreakType) DefaultPaid() bool { return t == BreakRest }

func (t CorrectionType) Valid() bool {
	return t == CorrectionClockIn || t == CorrectionClockOut
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID         int64
	BusinessID int64
	Role       UserRole
}

// User is the slice of the external user record this service reads.
type User struct {
	ID         int64
	BusinessID int64
	Name       string
	Email      string
	Role       UserRole
	PinHash    *string
	Active     bool
}

type ClockEvent struct {
	ID         uuid.UUID
	UserID     int64
	BusinessID int64
	TerminalID string
	Type       ClockEventType
	Method     ClockMethod
	Timestamp  time.Time
	LocationID *string
	IPAddress  *string
	CreatedAt  time.Time
}

type Shift struct {
	ID            uuid.UUID
	UserID        int64
	BusinessID    int64
	ClockInID     uuid.UUID
	ClockOutID    *uuid.UUID
	Status        ShiftStatus
	StartedAt     time.Time
	EndedAt       *time.Time
	TotalHours    float64
	RegularHours  float64
	OvertimeHours float64
	TimeShiftID   *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s Shift) Active() bool { return s.Status == ShiftActive }

type Break struct {
	ID        uuid.UUID
	ShiftID   uuid.UUID
	UserID    int64
	Type      BreakType
	IsPaid    bool
	StartedAt time.Time
	EndedAt   *time.Time
}

func (b Break) Open() bool { return b.EndedAt == nil }

type TimeCorrection struct {
	ID             uuid.UUID
	BusinessID     int64
	ClockEventID   *uuid.UUID
	ShiftID        *uuid.UUID
	CorrectionType CorrectionType
	OriginalTime   time.Time
	CorrectedTime  time.Time
	Reason         string
	RequestedBy    int64
	Status         CorrectionStatus
	ApprovedBy     *int64
	ProcessedAt    *time.Time
	CreatedAt      time.Time
}

type Schedule struct {
	ID               uuid.UUID
	StaffID          int64
	BusinessID       int64
	StartTime        time.Time
	EndTime          time.Time
	AssignedRegister string
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Status is derived from now against the [StartTime, EndTime) window.
func (s Schedule) Status(now time.Time) ScheduleStatus {
	switch {
	case now.Before(s.StartTime):
		return ScheduleUpcoming
	case now.Before(s.EndTime):
		return ScheduleActive
	default:
		return ScheduleCompleted
	}
}

// TimeShift is the attendance period that groups a user's POS shifts.
type TimeShift struct {
	ID         uuid.UUID
	UserID     int64
	BusinessID int64
	ClockInAt  time.Time
	ClockOutAt *time.Time
	Status     TimeShiftStatus
	CreatedAt  time.Time
}

type AuditRecord struct {
	ID         int64
	BusinessID int64
	ActorID    *int64
	Action     string
	Entity     string
	EntityID   string
	Metadata   map[string]any
	OccurredAt time.Time
}
