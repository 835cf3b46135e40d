package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/db"
	"shiftclock-backend/internal/handler"
	"shiftclock-backend/internal/repository"
	"shiftclock-backend/internal/server"
	"shiftclock-backend/internal/service"
	"shiftclock-backend/internal/sweeper"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "err", err)
		os.Exit(1)
	}

	// repositories
	stores := repository.NewStores(pg)

	// services
	svc := service.NewServices(stores, service.Options{
		Policies: cfg.Policies,
		Location: cfg.Location,
		Logger:   logger,
	})

	// handlers
	healthHandler := handler.HealthHandler{DB: pg}
	clockHandler := handler.TimeClockHandler{Clock: svc.TimeClock}
	breakHandler := handler.BreakHandler{Breaks: svc.Breaks, Clock: svc.TimeClock}
	correctionHandler := handler.CorrectionHandler{Workflow: svc.Corrections}
	scheduleHandler := handler.ScheduleHandler{Schedules: svc.Schedules}
	attendanceHandler := handler.AttendanceHandler{TimeShifts: svc.TimeShifts}
	timesheetHandler := handler.TimesheetHandler{Shifts: stores.Shifts, Location: cfg.Location}

	router := server.NewRouter(cfg, logger, healthHandler, clockHandler, breakHandler, correctionHandler, scheduleHandler, attendanceHandler, timesheetHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, cfg, router, logger)
	})
	if cfg.RunSweeper {
		sw := sweeper.Sweeper{
			Shifts:          svc.Shifts,
			Periods:         svc.TimeShifts,
			Threshold:       cfg.StaleShiftThreshold,
			Interval:        cfg.SweepInterval,
			BusinessTimeout: cfg.SweepBusinessTimeout,
			Logger:          logger,
		}
		g.Go(func() error {
			return sw.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
