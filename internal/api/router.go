package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/citymed/scheduling-core/internal/query"
	"github.com/citymed/scheduling-core/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	Query   *query.Service
	Repo    scheduling.Repository
	Metrics *Metrics
	PgPool  *pgxpool.Pool // nil in memory mode
	Redis   *redis.Client // nil when the distributed lock is disabled
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(cfg.Metrics))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Service, cfg.Metrics))
	r.Get("/appointments", searchAppointmentsHandler(cfg.Query))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service, cfg.Metrics))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service, cfg.Metrics))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service, cfg.Metrics))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service, cfg.Metrics))

	// Projections and directory
	r.Get("/day-view", dayViewHandler(cfg.Query))
	r.Get("/week-view", weekViewHandler(cfg.Query))
	r.Get("/resources", listResourcesHandler(cfg.Repo))

	return r
}
