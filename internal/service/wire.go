package service

import (
	"log/slog"
	"time"

	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/ports"
)

// Stores groups the persistence ports the services run on.
type Stores struct {
	Users       ports.UserRepository
	Events      ports.ClockEventRepository
	Shifts      ports.ShiftRepository
	Breaks      ports.BreakRepository
	Corrections ports.TimeCorrectionRepository
	Schedules   ports.ScheduleRepository
	TimeShifts  ports.TimeShiftRepository
	Audit       ports.AuditSink
	Tx          ports.TxManager
}

type Options struct {
	Policies config.PolicySet
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
}

type Services struct {
	Events      ClockEventLog
	Breaks      BreakTracker
	Shifts      ShiftLifecycle
	Corrections TimeCorrectionWorkflow
	Schedules   ScheduleService
	TimeShifts  TimeShiftService
	TimeClock   TimeClock
}

// NewServices builds the service graph over one set of stores.
func NewServices(st Stores, opt Options) Services {
	events := ClockEventLog{Events: st.Events, Tx: st.Tx, Audit: st.Audit, Now: opt.Now}
	breaks := BreakTracker{Breaks: st.Breaks, Shifts: st.Shifts, Tx: st.Tx, Audit: st.Audit, Now: opt.Now}
	shifts := ShiftLifecycle{
		Shifts:   st.Shifts,
		Events:   events,
		Breaks:   breaks,
		Tx:       st.Tx,
		Audit:    st.Audit,
		Policies: opt.Policies,
		Logger:   opt.Logger,
		Now:      opt.Now,
	}
	schedules := ScheduleService{
		Schedules: st.Schedules,
		Users:     st.Users,
		Tx:        st.Tx,
		Audit:     st.Audit,
		Policies:  opt.Policies,
		Location:  opt.Location,
		Now:       opt.Now,
	}
	timeShifts := TimeShiftService{
		TimeShifts: st.TimeShifts,
		Shifts:     st.Shifts,
		Breaks:     breaks,
		Tx:         st.Tx,
		Audit:      st.Audit,
		Logger:     opt.Logger,
		Now:        opt.Now,
	}
	return Services{
		Events: events,
		Breaks: breaks,
		Shifts: shifts,
		Corrections: TimeCorrectionWorkflow{
			Corrections: st.Corrections,
			Events:      st.Events,
			Shifts:      st.Shifts,
			Tx:          st.Tx,
			Audit:       st.Audit,
			Appliers: map[domain.CorrectionType]CorrectionApplier{
				domain.CorrectionClockIn:  ShiftCorrectionApplier(shifts),
				domain.CorrectionClockOut: ShiftCorrectionApplier(shifts),
			},
			Now: opt.Now,
		},
		Schedules:  schedules,
		TimeShifts: timeShifts,
		TimeClock: TimeClock{
			Users:      st.Users,
			Events:     events,
			Shifts:     shifts,
			TimeShifts: timeShifts,
			Schedules:  schedules,
			Tx:         st.Tx,
			Policies:   opt.Policies,
			Logger:     opt.Logger,
			Now:        opt.Now,
		},
	}
}
