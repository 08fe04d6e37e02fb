package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	identitypersistence "github.com/blisterpost/blisterpost/internal/identity/infrastructure/persistence"
	medspersistence "github.com/blisterpost/blisterpost/internal/medications/infrastructure/persistence"
	"github.com/blisterpost/blisterpost/internal/notifications"
	ordersapp "github.com/blisterpost/blisterpost/internal/orders/application"
	ordersworkers "github.com/blisterpost/blisterpost/internal/orders/application/workers"
	orderspersistence "github.com/blisterpost/blisterpost/internal/orders/infrastructure/persistence"
	"github.com/blisterpost/blisterpost/internal/shared/clock"
	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/eventbus"
	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/locking"
	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/migrations"
	"github.com/blisterpost/blisterpost/internal/shared/infrastructure/outbox"
	shipmentsapp "github.com/blisterpost/blisterpost/internal/shipments/application"
	shipmentsworkers "github.com/blisterpost/blisterpost/internal/shipments/application/workers"
	"github.com/blisterpost/blisterpost/internal/shipments/infrastructure/dhl"
	shipmentspersistence "github.com/blisterpost/blisterpost/internal/shipments/infrastructure/persistence"
	subsapp "github.com/blisterpost/blisterpost/internal/subscriptions/application"
	subsworkers "github.com/blisterpost/blisterpost/internal/subscriptions/application/workers"
	subspersistence "github.com/blisterpost/blisterpost/internal/subscriptions/infrastructure/persistence"
	"github.com/blisterpost/blisterpost/pkg/config"
	"github.com/blisterpost/blisterpost/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()
	logger.Info("starting blisterpost worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	outboxRepo := outbox.NewPostgresRepository(pool)
	profileRepo := identitypersistence.NewPostgresProfileRepository(pool)
	subscriptionRepo := subspersistence.NewPostgresSubscriptionRepository(pool)
	medicationRepo := medspersistence.NewPostgresMedicationRepository(pool)
	orderRepo := orderspersistence.NewPostgresOrderRepository(pool, outboxRepo, logger)
	shipmentRepo := shipmentspersistence.NewPostgresShipmentRepository(pool)

	// Event publisher
	var publisher eventbus.Publisher
	rabbitPublisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if cfg.IsDevelopment() {
			logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			publisher = eventbus.NewNoopPublisher(logger)
		} else {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
	} else {
		publisher = rabbitPublisher
		defer rabbitPublisher.Close()
	}
	logger.Info("event publisher initialized")

	// Redis lock for shipment reconciliation across instances
	var locker locking.Locker = locking.NoopLocker{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			if cfg.IsDevelopment() {
				logger.Warn("Redis not available, shipment locking disabled", "error", err)
			} else {
				logger.Error("failed to connect to Redis", "error", err)
				os.Exit(1)
			}
		} else {
			defer redisClient.Close()
			locker = locking.NewRedisLocker(redisClient, "blisterpost:lock")
			logger.Info("connected to redis")
		}
	}

	metrics := observability.NewInMemoryMetrics()
	dispatcher := notifications.NewOutboxDispatcher(outboxRepo, logger)

	// Outbox processor
	processorConfig := outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}
	processor := outbox.NewProcessor(outboxRepo, publisher, processorConfig, logger)
	if err := processor.Start(ctx); err != nil {
		logger.Error("failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	cleanupTicker := time.NewTicker(cfg.OutboxCleanupInterval)
	defer cleanupTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanupTicker.C:
				deleted, err := outboxRepo.DeleteOld(ctx, cfg.OutboxRetentionDays)
				if err != nil {
					logger.Error("outbox cleanup failed", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
				}
			}
		}
	}()

	statsTicker := time.NewTicker(cfg.OutboxStatsInterval)
	defer statsTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				stats := processor.GetStats()
				logger.Info("outbox stats",
					"running", stats.IsRunning,
					"published", stats.PublishedCount,
					"failed", stats.FailedCount,
					"dead", stats.DeadCount,
					"lag_seconds", stats.LagSeconds,
				)
			}
		}
	}()

	// Jobs
	generator := ordersapp.NewGenerator(
		subscriptionRepo, orderRepo, profileRepo, medicationRepo,
		clock.System{}, logger, metrics,
	)

	dhlConfig := dhl.DefaultClientConfig(cfg.DHLAPIKey)
	dhlConfig.BaseURL = cfg.DHLBaseURL
	dhlConfig.Timeout = cfg.DHLTimeout
	tracker := dhl.NewClient(dhlConfig, logger)

	reconciler := shipmentsapp.NewReconciler(
		shipmentRepo, orderRepo, tracker, locker, dispatcher,
		shipmentsapp.ReconcilerConfig{
			BatchSize:     cfg.TrackingBatchSize,
			MaxConcurrent: cfg.TrackingMaxConcurrent,
			NotFoundLimit: cfg.TrackingNotFoundLimit,
			LockTTL:       cfg.TrackingLockTTL,
		},
		logger, metrics,
	)

	reminders := subsapp.NewReminderService(
		subscriptionRepo, profileRepo, dispatcher,
		cfg.ReminderLeadDays, clock.System{}, logger, metrics,
	)

	generationWorker := ordersworkers.NewGenerationWorker(generator,
		ordersworkers.GenerationWorkerConfig{Interval: cfg.OrderGenerationInterval}, logger)
	reconciliationWorker := shipmentsworkers.NewReconciliationWorker(reconciler,
		shipmentsworkers.ReconciliationWorkerConfig{Interval: cfg.TrackingInterval}, logger)
	reminderWorker := subsworkers.NewReminderWorker(reminders,
		subsworkers.ReminderWorkerConfig{Interval: cfg.ReminderInterval}, logger)

	var wg sync.WaitGroup
	runWorker := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && err != context.Canceled {
				logger.Error("worker exited with error", "worker", name, "error", err)
			}
		}()
	}
	runWorker("order-generation", generationWorker.Run)
	runWorker("shipment-reconciliation", reconciliationWorker.Run)
	runWorker("subscription-reminders", reminderWorker.Run)

	if cfg.WorkerHealthAddr != "" {
		startHealthServer(ctx, cfg.WorkerHealthAddr, pool, processor, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down worker")

	wg.Wait()
	processor.Stop()
	logger.Info("worker stopped")
}

func startHealthServer(ctx context.Context, addr string, pool *pgxpool.Pool, processor *outbox.Processor, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := processor.GetStats()
		response := map[string]any{
			"status":            "ok",
			"outbox_running":    stats.IsRunning,
			"outbox_published":  stats.PublishedCount,
			"outbox_failed":     stats.FailedCount,
			"outbox_dead":       stats.DeadCount,
			"last_processed_at": stats.LastProcessedAt,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
