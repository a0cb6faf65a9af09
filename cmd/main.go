package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atlas/internal/adapters/config"
	"atlas/internal/adapters/errors/noop"
	"atlas/internal/adapters/errors/sentry"
	"atlas/internal/adapters/kafka"
	"atlas/internal/adapters/postgres"
	"atlas/internal/adapters/redis"
	"atlas/internal/adapters/venues"
	"atlas/internal/consumers"
	"atlas/internal/domain/fill"
	"atlas/internal/domain/strategy"
	"atlas/internal/domain/trade"
	repopg "atlas/internal/repository/postgres"
	reporedis "atlas/internal/repository/redis"
	"atlas/internal/services/ingest"
	"atlas/internal/workers"
	"atlas/pkg/errors"
	"atlas/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Databases
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Event bus
	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	// Ingestion pipeline
	store := repopg.NewCycleStore(pgClient.DB())
	lock := reporedis.NewAccountLock(redisClient, cfg.Ingest.LockTTL)
	ingestService := ingest.NewService(store, lock, producer, ingest.Options{
		MaxLeverage: cfg.Ingest.MaxLeverage,
		StaleAfter:  cfg.Ingest.Interval,
	})

	cycleConsumer := consumers.NewSnapshotConsumer(
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   kafka.TopicSnapshotCycles,
		}),
		ingestService,
		venues.NewRegistry(venues.NewHyperliquid(), venues.NewApex()),
	)
	defer cycleConsumer.Close()

	// Aggregation
	scheduler := initWorkers(cfg, pgClient, producer)

	log.Info("System initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	go func() {
		if err := cycleConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Snapshot consumer stopped: %v", err)
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, scheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initWorkers wires the aggregation worker over pool-scoped repositories
func initWorkers(cfg *config.Config, pgClient *postgres.Client, producer *kafka.Producer) *workers.Scheduler {
	db := pgClient.DB()

	var fills fill.Repository = repopg.NewFillRepository(db)
	var strategies strategy.Repository = repopg.NewStrategyRepository(db)

	aggregator := trade.NewAggregator(
		fills,
		repopg.NewSnapshotRepository(db),
		repopg.NewTradeRepository(db),
		strategy.NewResolver(strategies),
		cfg.Workers.AggregationWindow,
	)

	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewAggregationWorker(
		aggregator,
		fills,
		producer,
		cfg.Workers.AggregationInterval,
		cfg.Workers.AggregationLookback,
		cfg.Workers.AggregationEnabled,
	))
	return scheduler
}

// waitForShutdown blocks until a termination signal arrives
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, scheduler *workers.Scheduler, tracker errors.Tracker, log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received signal %s, shutting down...", sig)
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down...")
	}

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown: %v", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := tracker.Flush(flushCtx); err != nil {
		log.Warnf("Error tracker flush: %v", err)
	}

	log.Info("Shutdown complete")
}
