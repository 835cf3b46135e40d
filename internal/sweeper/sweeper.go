// Package sweeper runs the periodic auto-close of abandoned shifts and the
// attendance-period cascade that follows it.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/metrics"
)

// ShiftCloser is satisfied by service.ShiftLifecycle.
type ShiftCloser interface {
	AutoCloseStale(ctx context.Context, now time.Time, threshold time.Duration) ([]domain.Shift, error)
}

// PeriodCloser is satisfied by service.TimeShiftService.
type PeriodCloser interface {
	CloseIdle(ctx context.Context, businessID int64, ids []uuid.UUID, now time.Time) ([]domain.TimeShift, error)
}

const (
	DefaultInterval        = 30 * time.Minute
	DefaultBusinessTimeout = 30 * time.Second
)

type Sweeper struct {
	Shifts  ShiftCloser
	Periods PeriodCloser
	// Threshold of zero lets the shift closer apply per-business policy.
	Threshold       time.Duration
	Interval        time.Duration
	BusinessTimeout time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// Result summarizes one tick.
type Result struct {
	Closed     []domain.Shift
	Periods    []domain.TimeShift
	Businesses int
	Failures   int
}

// Run ticks once immediately, then on every Interval until ctx is cancelled.
func (s Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := s.logger()
	log.Info("shift sweeper started", "interval", interval.String(), "threshold", s.Threshold.String())

	s.Tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shift sweeper stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick closes stale shifts, then runs the period cascade for every business
// that had a shift closed. A failing business is logged and skipped.
func (s Sweeper) Tick(ctx context.Context) Result {
	started := time.Now()
	now := s.now()
	log := s.logger()

	var res Result
	closed, err := s.Shifts.AutoCloseStale(ctx, now, s.Threshold)
	if err != nil {
		res.Failures++
		log.Error("auto-close stale shifts", "err", err)
	}
	res.Closed = closed

	byBusiness := map[int64][]uuid.UUID{}
	for _, sh := range closed {
		ids := byBusiness[sh.BusinessID]
		if sh.TimeShiftID != nil {
			ids = append(ids, *sh.TimeShiftID)
		}
		byBusiness[sh.BusinessID] = ids
	}
	businessIDs := make([]int64, 0, len(byBusiness))
	for id := range byBusiness {
		businessIDs = append(businessIDs, id)
	}
	sort.Slice(businessIDs, func(i, j int) bool { return businessIDs[i] < businessIDs[j] })

	for _, businessID := range businessIDs {
		if ctx.Err() != nil {
			break
		}
		res.Businesses++
		periods, err := s.cascade(ctx, businessID, byBusiness[businessID], now)
		res.Periods = append(res.Periods, periods...)
		if err != nil {
			res.Failures++
			metrics.SweepBusinessErrors.Inc()
			log.Error("attendance cascade failed", "business_id", businessID, "err", err)
		}
	}

	result := "ok"
	if res.Failures > 0 {
		result = "partial"
	}
	metrics.SweepRuns.WithLabelValues(result).Inc()
	metrics.SweepDuration.Observe(time.Since(started).Seconds())
	if len(res.Closed) > 0 || res.Failures > 0 {
		log.Info("shift sweep finished",
			"closed_shifts", len(res.Closed),
			"closed_periods", len(res.Periods),
			"businesses", res.Businesses,
			"failures", res.Failures,
		)
	}
	return res
}

func (s Sweeper) cascade(ctx context.Context, businessID int64, ids []uuid.UUID, now time.Time) (periods []domain.TimeShift, err error) {
	if s.Periods == nil || len(ids) == 0 {
		return nil, nil
	}
	timeout := s.BusinessTimeout
	if timeout <= 0 {
		timeout = DefaultBusinessTimeout
	}
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Periods.CloseIdle(bctx, businessID, ids, now)
}

func (s Sweeper) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
