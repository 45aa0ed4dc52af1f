package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/vetdesk/vetbook/internal/appointment"
	"github.com/vetdesk/vetbook/internal/availability"
	"github.com/vetdesk/vetbook/internal/directory"
	"github.com/vetdesk/vetbook/internal/schedule"
	"github.com/vetdesk/vetbook/internal/workflow"
)

type RouterConfig struct {
	Schedules    *schedule.Service
	Availability *availability.Service
	Engine       *appointment.Service
	Wizard       *workflow.Service
	Directory    *directory.PgRepository
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	sched := &scheduleHandlers{schedules: cfg.Schedules, avail: cfg.Availability}
	appts := &appointmentHandlers{engine: cfg.Engine}
	wizard := &workflowHandlers{wizard: cfg.Wizard}
	dir := &directoryHandlers{directory: cfg.Directory}

	r.Get("/providers", dir.listProviders)
	r.Get("/owners/{ownerID}/pets", dir.listPets)

	r.Route("/providers/{providerID}", func(r chi.Router) {
		r.Get("/schedule", sched.getWeek)
		r.Put("/schedule", sched.putWeek)
		r.Get("/exceptions", sched.listExceptions)
		r.Put("/exceptions/{date}", sched.putException)
		r.Delete("/exceptions/{date}", sched.deleteException)
		r.Get("/slots", sched.listSlots)
		r.Post("/slots/{date}/{start}/block", sched.setSlotBlocked(true))
		r.Post("/slots/{date}/{start}/unblock", sched.setSlotBlocked(false))
		r.Get("/appointments", appts.listByProvider)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", appts.book)
		r.Get("/", appts.listByOwner)
		r.Get("/{id}", appts.get)
		r.Get("/{id}/history", appts.history)
		r.Post("/{id}/reschedule", appts.reschedule)
		r.Post("/{id}/confirm", appts.confirm)
		r.Post("/{id}/start", appts.start)
		r.Post("/{id}/complete", appts.complete)
		r.Post("/{id}/cancel", appts.cancel)
	})

	r.Route("/booking-sessions", func(r chi.Router) {
		r.Post("/", wizard.startSession)
		r.Get("/{id}", wizard.getSession)
		r.Post("/{id}/pet", wizard.step(workflow.StepPet))
		r.Post("/{id}/date", wizard.step(workflow.StepDate))
		r.Post("/{id}/time", wizard.step(workflow.StepTime))
		r.Post("/{id}/reason", wizard.step(workflow.StepReason))
		r.Post("/{id}/confirm", wizard.confirm)
	})

	return r
}
