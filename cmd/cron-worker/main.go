package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/feeledger/internal/billing"
	"github.com/angelmondragon/feeledger/internal/cron"
	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/db"
	"github.com/angelmondragon/feeledger/pkg/logger"
	"github.com/angelmondragon/feeledger/pkg/metrics"
	"github.com/angelmondragon/feeledger/pkg/migrate"
	"github.com/angelmondragon/feeledger/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit (for external schedulers)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Environment: cfg.App.Env,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg, *once); err != nil {
		logg.Error(ctx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	publisher, closePublisher, err := billing.NewPublisher(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("bootstrap billing publisher: %w", err)
	}
	defer closePublisher()

	svcs, err := billing.NewServices(billing.ServicesParams{
		Config:    cfg.Billing,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Publisher: publisher,
		Metrics:   metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("billing services: %w", err)
	}

	cycleJob, err := cron.NewInvoiceCycleJob(cron.InvoiceCycleJobParams{Logger: logg, Invoices: svcs.Invoices})
	if err != nil {
		return err
	}
	overdueJob, err := cron.NewOverdueJob(cron.OverdueJobParams{Logger: logg, Invoices: svcs.Invoices})
	if err != nil {
		return err
	}
	registry, err := cron.NewRegistry(cycleJob, overdueJob)
	if err != nil {
		return err
	}

	lock, err := cycleLock(cfg, redisClient)
	if err != nil {
		return err
	}
	schedule, err := cfg.Billing.CycleSchedule()
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Schedule: schedule,
	})
	if err != nil {
		return err
	}

	if once {
		logg.Info(ctx, "running a single cron cycle")
		if err := service.RunOnce(ctx); err != nil && !errors.Is(err, cron.ErrCycleSkipped) {
			return err
		}
		return nil
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"schedule": cfg.Billing.CronSchedule,
		"interval": cfg.Billing.CronInterval.String(),
	}), "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// cycleLock follows the supplier lock backend so a single-node setup needs no
// shared lease.
func cycleLock(cfg *config.Config, redisClient *redis.Client) (cron.Lock, error) {
	if cfg.Billing.UsesLocalLocks() {
		return cron.NewLocalLock(), nil
	}
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	return cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName, env), 0)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "close failed", err)
	}
}
