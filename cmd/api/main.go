package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/owya490/sportshub-backend/api/routes"
	"github.com/owya490/sportshub-backend/internal/bookings"
	"github.com/owya490/sportshub-backend/internal/checkout"
	"github.com/owya490/sportshub-backend/internal/emails"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/internal/forms"
	"github.com/owya490/sportshub-backend/internal/fulfilment"
	"github.com/owya490/sportshub-backend/internal/tickets"
	"github.com/owya490/sportshub-backend/internal/waitlist"
	"github.com/owya490/sportshub-backend/internal/webhooks"
	"github.com/owya490/sportshub-backend/pkg/config"
	"github.com/owya490/sportshub-backend/pkg/db"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/metrics"
	"github.com/owya490/sportshub-backend/pkg/migrate"
	"github.com/owya490/sportshub-backend/pkg/redis"
	pkgstripe "github.com/owya490/sportshub-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	eventsRepo := events.NewRepository(dbClient.DB())
	ticketsRepo := tickets.NewRepository(dbClient.DB())
	formsRepo := forms.NewRepository(dbClient.DB())
	fulfilmentRepo := fulfilment.NewRepository(dbClient.DB())
	waitlistRepo := waitlist.NewRepository(dbClient.DB())

	sender, err := emails.NewSendgridSender(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create email sender", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(dbClient, eventsRepo, checkout.NewStripeClient(stripeClient), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	fulfilmentSvc, err := fulfilment.NewService(dbClient, fulfilmentRepo, eventsRepo, formsRepo, checkoutSvc, cfg.URLs, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfilment service", err)
		os.Exit(1)
	}

	waitlistSvc, err := waitlist.NewService(waitlistRepo, eventsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create waitlist service", err)
		os.Exit(1)
	}

	bookingsSvc, err := bookings.NewService(dbClient, eventsRepo, ticketsRepo, bookings.NewStripeClient(stripeClient), sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	webhooksSvc, err := webhooks.NewService(
		dbClient,
		eventsRepo,
		ticketsRepo,
		fulfilmentSvc,
		sender,
		redisClient,
		webhookMetrics,
		logg,
		stripeClient.SigningSecret(),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Fulfilment: fulfilmentSvc,
			Bookings:   bookingsSvc,
			Waitlist:   waitlistSvc,
			Webhooks:   webhooksSvc,
			Limiter:    redisClient,
			Metrics:    prometheus.DefaultGatherer,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
