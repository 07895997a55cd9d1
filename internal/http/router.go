package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/yard-sale-vendors/internal/idempotency"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
	"github.com/robertarktes/yard-sale-vendors/internal/rateLimit"
)

const (
	publicRate   = 30
	publicPeriod = time.Minute
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/registrations", func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, publicRate, publicPeriod))
		r.Post("/", h.CreateRegistration)
		r.Get("/{sessionID}", h.GetRegistration)
		r.Post("/{sessionID}/payment", h.ConfirmPayment)
		r.Delete("/{sessionID}", h.CancelRegistration)
	})

	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, publicRate, publicPeriod))
		r.With(IdempotencyMiddleware(idemp)).Post("/create-payment-intent", h.CreatePaymentIntent)
		r.Post("/send-confirmation-email", h.SendConfirmationEmail)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(h.cfg.AdminJWTSecret))
		r.Get("/registrations", h.ListRegistrations)
		r.Get("/registrations/export", h.ExportRegistrations)
		r.Post("/registrations/{id}/status", h.SetRegistrationStatus)
	})

	return r
}
