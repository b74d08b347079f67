package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Slots        *slot.Registry
	Directory    directory.Repository
	Identity     *identity.Resolver

	// Optional readiness dependencies.
	Postgres Pinger
	Redis    redis.UniversalClient

	// Metrics defaults to promhttp.Handler().
	Metrics http.Handler
	Logger  *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := logging.OrNop(cfg.Logger)
	h := &Handler{
		appointments: cfg.Appointments,
		slots:        cfg.Slots,
		directory:    cfg.Directory,
		identity:     cfg.Identity,
		logger:       logger,
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(CallerMiddleware)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Get("/me", h.me)

	r.Route("/doctors", func(r chi.Router) {
		r.Post("/register", h.registerDoctor)
		r.Get("/{id}", h.getDoctor)
	})

	r.Route("/slots", func(r chi.Router) {
		r.Get("/", h.listSlots)
		r.Post("/", h.createSlot)
		r.Post("/generate", h.generateSlots)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", h.listAppointments)
		r.Post("/", h.createAppointment)
		r.Get("/{id}", h.getAppointment)
		r.Post("/{id}/cancel", h.cancelAppointment)
		r.Patch("/{id}/status", h.updateStatus)
		r.Patch("/{id}/notes", h.updateNotes)
	})

	return r
}
