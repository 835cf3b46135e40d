// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shiftclock"

var (
	ClockEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clock_events_recorded_total",
		Help:      "Clock events appended to the log.",
	}, []string{"type", "method"})

	ShiftsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shifts_closed_total",
		Help:      "Shifts that left the active state.",
	}, []string{"status"})

	ShiftHours = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "shift_total_hours",
		Help:      "Total hours of closed shifts.",
		Buckets:   []float64{1, 2, 4, 6, 8, 10, 12, 16},
	})

	CorrectionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "time_corrections_processed_total",
		Help:      "Time corrections resolved by a manager.",
	}, []string{"outcome"})

	ScheduleRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schedule_rejected_total",
		Help:      "Schedule writes rejected by validation.",
	}, []string{"reason"})

	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_runs_total",
		Help:      "Auto-close sweeper ticks.",
	}, []string{"result"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Wall time of one sweeper tick.",
		Buckets:   prometheus.DefBuckets,
	})

	SweepBusinessErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_business_errors_total",
		Help:      "Per-business cascade failures during a sweep.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
