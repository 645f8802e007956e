package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/owya490/sportshub-backend/api/controllers"
	"github.com/owya490/sportshub-backend/api/middleware"
	"github.com/owya490/sportshub-backend/internal/bookings"
	"github.com/owya490/sportshub-backend/internal/fulfilment"
	"github.com/owya490/sportshub-backend/internal/waitlist"
	"github.com/owya490/sportshub-backend/internal/webhooks"
	"github.com/owya490/sportshub-backend/pkg/config"
	"github.com/owya490/sportshub-backend/pkg/db"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      redis.Pinger
	Fulfilment fulfilment.Service
	Bookings   bookings.Service
	Waitlist   waitlist.Service
	Webhooks   webhooks.Service
	Limiter    middleware.RateLimiterStore
	Metrics    prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", controllers.StripeWebhook(deps.Webhooks, logg))
	})

	initPolicy := middleware.NewRateLimitPolicy(
		"session-init",
		cfg.RateLimit.SessionInitWindow,
		cfg.RateLimit.SessionInitPerIP,
	)

	r.Route("/api/v1/fulfilment/sessions", func(r chi.Router) {
		r.With(middleware.RateLimit(initPolicy, deps.Limiter, logg)).
			Post("/", controllers.InitFulfilmentSession(deps.Fulfilment, logg))
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", controllers.FulfilmentSessionInfo(deps.Fulfilment, logg))
			r.Delete("/", controllers.FulfilmentDelete(deps.Fulfilment, logg))
			r.Post("/exec-next", controllers.FulfilmentExecNext(deps.Fulfilment, logg))
			r.Route("/entities/{entityId}", func(r chi.Router) {
				r.Get("/", controllers.FulfilmentEntityInfo(deps.Fulfilment, logg))
				r.Get("/next", controllers.FulfilmentNext(deps.Fulfilment, logg))
				r.Get("/prev", controllers.FulfilmentPrev(deps.Fulfilment, logg))
				r.Post("/complete", controllers.FulfilmentComplete(deps.Fulfilment, logg))
				r.Put("/form-answers", controllers.FulfilmentSaveFormAnswers(deps.Fulfilment, logg))
				r.Post("/waitlist", controllers.WaitlistJoin(deps.Waitlist, deps.Fulfilment, logg))
			})
		})
	})

	r.Route("/api/v1/organiser", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Route("/events/{eventId}", func(r chi.Router) {
			r.Get("/waitlist", controllers.WaitlistList(deps.Waitlist, logg))
			r.Post("/orders/{orderId}/approve", controllers.BookingApprove(deps.Bookings, logg))
			r.Post("/orders/{orderId}/reject", controllers.BookingReject(deps.Bookings, logg))
		})
	})

	return r
}
