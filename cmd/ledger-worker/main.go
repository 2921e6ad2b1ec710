package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/feeledger/internal/billing"
	"github.com/angelmondragon/feeledger/internal/consumers/orders"
	"github.com/angelmondragon/feeledger/pkg/config"
	"github.com/angelmondragon/feeledger/pkg/db"
	"github.com/angelmondragon/feeledger/pkg/events"
	"github.com/angelmondragon/feeledger/pkg/events/idempotency"
	"github.com/angelmondragon/feeledger/pkg/logger"
	"github.com/angelmondragon/feeledger/pkg/metrics"
	"github.com/angelmondragon/feeledger/pkg/migrate"
	"github.com/angelmondragon/feeledger/pkg/pubsub"
	"github.com/angelmondragon/feeledger/pkg/redis"
)

const serviceName = "ledger-worker"

func main() {
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

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "ledger worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "ledger worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	if err := cfg.PubSub.RequireOrdersSubscription(); err != nil {
		return err
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer pubsubClient.Close()

	subscription, err := pubsubClient.OrdersSubscription()
	if err != nil {
		return err
	}
	var publisher events.Publisher = events.NoopPublisher{}
	if topic := pubsubClient.BillingPublisher(); topic != nil {
		if publisher, err = events.NewPubSubPublisher(topic); err != nil {
			return fmt.Errorf("billing publisher: %w", err)
		}
	}

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)
	svcs, err := billing.NewServices(billing.ServicesParams{
		Config:    cfg.Billing,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Publisher: publisher,
		Metrics:   billingMetrics,
	})
	if err != nil {
		return fmt.Errorf("billing services: %w", err)
	}

	handler, err := orders.NewHandler(svcs.Ledger, svcs.Invoices)
	if err != nil {
		return err
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return err
	}
	consumer, err := orders.NewConsumer(orders.ConsumerParams{
		Subscription: subscription,
		Handler:      handler,
		Idempotency:  manager,
		Logger:       logg,
		Observer:     billingMetrics,
	})
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	if err != nil {
		return err
	}
	logg.Info(ctx, "starting ledger worker")
	return service.Run(ctx)
}
