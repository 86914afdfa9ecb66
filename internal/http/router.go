package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/event-ticketing-payments/internal/auth"
	"github.com/robertarktes/event-ticketing-payments/internal/config"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
	"github.com/robertarktes/event-ticketing-payments/internal/rateLimit"
)

// SetupRouter mounts the API. rl and verifier may be nil; the my-tickets
// route is only served with a verifier, the catalog routes only with a catalog.
func SetupRouter(cfg *config.Config, h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, verifier *auth.Verifier) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware(cfg.CORSAllowedOrigins))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	// Called server-to-server by the gateway, never rate limited.
	r.Post("/api/payment/verify", h.VerifyWebhook)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(rl, cfg.RateLimitPerMinute))

		r.With(IdempotencyMiddleware).Post("/api/payment/create-order", h.CreateOrder)
		r.Get("/api/payment/booking-status/{orderId}", h.BookingStatus)
		r.Get("/api/events/booked-seats", h.BookedSeats)

		if h.catalog != nil {
			r.Get("/api/events", h.ListEvents)
			r.Get("/api/events/{id}", h.GetEvent)
		}
		if verifier != nil {
			r.With(JWTMiddleware(verifier, logger)).Get("/api/bookings/me", h.MyTickets)
		}
	})

	return r
}
