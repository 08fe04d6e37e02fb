package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blisterpost/blisterpost/adapter/cli"
	identitypersistence "github.com/blisterpost/blisterpost/internal/identity/infrastructure/persistence"
	medspersistence "github.com/blisterpost/blisterpost/internal/medications/infrastructure/persistence"
	"github.com/blisterpost/blisterpost/internal/notifications"
	ordersapp "github.com/blisterpost/blisterpost/internal/orders/application"
	orderspersistence "github.com/blisterpost/blisterpost/internal/orders/infrastructure/persistence"
	"github.com/blisterpost/blisterpost/internal/shared/clock"
	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/outbox"
	shipmentsapp "github.com/blisterpost/blisterpost/internal/shipments/application"
	"github.com/blisterpost/blisterpost/internal/shipments/infrastructure/dhl"
	shipmentspersistence "github.com/blisterpost/blisterpost/internal/shipments/infrastructure/persistence"
	subsapp "github.com/blisterpost/blisterpost/internal/subscriptions/application"
	subspersistence "github.com/blisterpost/blisterpost/internal/subscriptions/infrastructure/persistence"
	"github.com/blisterpost/blisterpost/pkg/config"
	"github.com/blisterpost/blisterpost/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	outboxRepo := outbox.NewPostgresRepository(pool)
	dispatcher := notifications.NewOutboxDispatcher(outboxRepo, logger)

	profileRepo := identitypersistence.NewPostgresProfileRepository(pool)
	subscriptionRepo := subspersistence.NewPostgresSubscriptionRepository(pool)
	medicationRepo := medspersistence.NewPostgresMedicationRepository(pool)
	orderRepo := orderspersistence.NewPostgresOrderRepository(pool, outboxRepo, logger)
	shipmentRepo := shipmentspersistence.NewPostgresShipmentRepository(pool)

	dhlConfig := dhl.DefaultClientConfig(cfg.DHLAPIKey)
	dhlConfig.BaseURL = cfg.DHLBaseURL
	dhlConfig.Timeout = cfg.DHLTimeout
	tracker := dhl.NewClient(dhlConfig, logger)

	// The one-shot commands run without cross-instance locking; concurrent
	// cron invocations are still safe through the database constraints.
	reconciler := shipmentsapp.NewReconciler(
		shipmentRepo, orderRepo, tracker, nil, dispatcher,
		shipmentsapp.ReconcilerConfig{
			BatchSize:     cfg.TrackingBatchSize,
			MaxConcurrent: cfg.TrackingMaxConcurrent,
			NotFoundLimit: cfg.TrackingNotFoundLimit,
			LockTTL:       cfg.TrackingLockTTL,
		},
		logger, nil,
	)

	cli.SetLogger(logger)
	cli.SetDependencies(cli.Dependencies{
		Generator: ordersapp.NewGenerator(
			subscriptionRepo, orderRepo, profileRepo, medicationRepo,
			clock.System{}, logger, nil,
		),
		Reconciler: reconciler,
		Reminders: subsapp.NewReminderService(
			subscriptionRepo, profileRepo, dispatcher,
			cfg.ReminderLeadDays, clock.System{}, logger, nil,
		),
		Tracker:   tracker,
		Shipments: shipmentRepo,
	})

	cli.Execute()
}
