package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/owya490/sportshub-backend/internal/checkout"
	"github.com/owya490/sportshub-backend/internal/cron"
	"github.com/owya490/sportshub-backend/internal/events"
	"github.com/owya490/sportshub-backend/internal/forms"
	"github.com/owya490/sportshub-backend/internal/fulfilment"
	"github.com/owya490/sportshub-backend/pkg/config"
	"github.com/owya490/sportshub-backend/pkg/db"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/owya490/sportshub-backend/pkg/metrics"
	"github.com/owya490/sportshub-backend/pkg/migrate"
	"github.com/owya490/sportshub-backend/pkg/redis"
	pkgstripe "github.com/owya490/sportshub-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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
	formsRepo := forms.NewRepository(dbClient.DB())
	fulfilmentRepo := fulfilment.NewRepository(dbClient.DB())

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

	cleanupJob, err := cron.NewSessionCleanupJob(cron.SessionCleanupJobParams{
		Logger:   logg,
		Sessions: fulfilmentRepo,
		Deleter:  fulfilmentSvc,
		Cutoff:   cfg.Cron.SessionCleanupCutoff,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session cleanup job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(cleanupJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
