package repository

import (
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/service"
)

// NewStores binds every service port to its Postgres repository.
func NewStores(pg *db.Postgres) service.Stores {
	return service.Stores{
		Users:       UserRepository{DB: pg},
		Events:      ClockEventRepository{DB: pg},
		Shifts:      ShiftRepository{DB: pg},
		Breaks:      BreakRepository{DB: pg},
		Corrections: TimeCorrectionRepository{DB: pg},
		Schedules:   ScheduleRepository{DB: pg},
		TimeShifts:  TimeShiftRepository{DB: pg},
		Audit:       AuditLogRepository{DB: pg},
		Tx:          pg,
	}
}
