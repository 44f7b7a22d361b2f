package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue/internal/booking"
	"github.com/hackgods/clinic-queue/internal/notify"
	"github.com/hackgods/clinic-queue/internal/queue"
)

type RouterConfig struct {
	Booking *booking.Service
	Queues  *queue.Service
	Hub     *notify.Hub
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Post("/appointments", bookAppointmentHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
	r.Post("/appointments/{id}/status", updateAppointmentStatusHandler(cfg.Booking))
	r.Post("/appointments/{id}/messages", addMessageHandler(cfg.Booking))
	r.Get("/doctors/{id}/appointments", listDoctorAppointmentsHandler(cfg.Booking))
	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Booking))
	r.Get("/doctors/{id}/next-slot", nextSlotHandler(cfg.Booking))

	// Queue endpoints
	r.Post("/doctors/{id}/queue", ensureQueueHandler(cfg.Queues))
	r.Post("/queues/{id}/join", joinQueueHandler(cfg.Queues))
	r.Get("/queues/{id}", getQueueHandler(cfg.Queues))
	r.Get("/queues/{id}/stats", queueStatsHandler(cfg.Queues))
	r.Post("/queues/{id}/status", setQueueStatusHandler(cfg.Queues))
	r.Post("/queues/entries/{id}/status", updateEntryStatusHandler(cfg.Queues))

	// Realtime subscriptions
	ws := notify.NewWSHandler(cfg.Hub, cfg.Logger)
	r.Get("/ws", ws.HandleConnect)

	return r
}
