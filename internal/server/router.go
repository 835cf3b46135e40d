package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"shiftclock-backend/internal/config"
	"shiftclock-backend/internal/domain"
	"shiftclock-backend/internal/handler"
)

// NewRouter wires HTTP routes and middleware.
func NewRouter(cfg config.Config,
	logger *slog.Logger,
	health handler.HealthHandler,
	clock handler.TimeClockHandler,
	breaks handler.BreakHandler,
	corrections handler.CorrectionHandler,
	schedules handler.ScheduleHandler,
	attendance handler.AttendanceHandler,
	timesheets handler.TimesheetHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Terminal-ID"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	limit := cfg.RateLimitPerMinute
	if limit <= 0 {
		limit = 200
	}
	r.Use(httprate.LimitByIP(limit, 1*time.Minute))

	health.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(AuthMiddleware(cfg.JWTSecret))
		// staff-level (staff/manager/admin)
		pr.Group(func(sr chi.Router) {
			sr.Use(RequireRole(domain.RoleAdmin, domain.RoleManager, domain.RoleStaff))
			clock.RegisterRoutes(sr)
			breaks.RegisterRoutes(sr)
			corrections.RegisterRoutes(sr)
			schedules.RegisterRoutes(sr)
			attendance.RegisterRoutes(sr)
		})
		// manager-level (manager/admin)
		pr.Group(func(mr chi.Router) {
			mr.Use(RequireRole(domain.RoleAdmin, domain.RoleManager))
			clock.RegisterManagerRoutes(mr)
			corrections.RegisterManagerRoutes(mr)
			schedules.RegisterManagerRoutes(mr)
			timesheets.RegisterRoutes(mr)
		})
	})

	return r
}
