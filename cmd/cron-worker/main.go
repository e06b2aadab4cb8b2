package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-inventory/api"
	"github.com/angelmondragon/packfinderz-inventory/api/controllers"
	"github.com/angelmondragon/packfinderz-inventory/api/routes"
	"github.com/angelmondragon/packfinderz-inventory/internal/catalog"
	"github.com/angelmondragon/packfinderz-inventory/internal/cron"
	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/internal/lowstock"
	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/metrics"
	"github.com/angelmondragon/packfinderz-inventory/pkg/migrate"
	"github.com/angelmondragon/packfinderz-inventory/pkg/outbox"
	"github.com/angelmondragon/packfinderz-inventory/pkg/redis"
)

const dailyJobInterval = 24 * time.Hour

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

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cronMetrics := metrics.NewCronJobMetrics(promRegistry)
	inventoryMetrics := metrics.NewInventoryMetrics(promRegistry)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, inventoryMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	opsHandler := routes.NewOpsRouter(routes.OpsParams{
		Config:   cfg,
		Logger:   logg,
		Gatherer: promRegistry,
		Deps: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error { return api.Serve(groupCtx, cfg.Ops.Port, opsHandler, logg) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, inventoryMetrics *metrics.InventoryMetrics) (*cron.Registry, error) {
	conn := dbClient.DB()
	records := inventory.NewRecordRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	engine, err := inventory.NewService(inventory.ServiceParams{
		DB:           dbClient,
		Records:      records,
		Ledger:       ledgerRepo,
		Catalog:      catalog.NewRepository(conn),
		Outbox:       emitter,
		Metrics:      inventoryMetrics,
		Logger:       logg,
		MaxRetries:   cfg.Inventory.MaxCASRetries,
		RetryBackoff: cfg.Inventory.RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("inventory engine: %w", err)
	}
	monitor, err := lowstock.NewMonitor(engine)
	if err != nil {
		return nil, err
	}

	lowStockJob, err := lowstock.NewJob(lowstock.JobParams{
		Logger:  logg,
		DB:      dbClient,
		Monitor: monitor,
		Tenants: records,
		Outbox:  emitter,
		Metrics: inventoryMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("low stock job: %w", err)
	}

	auditJob, err := cron.NewLedgerAuditJob(cron.LedgerAuditJobParams{
		Logger:    logg,
		DB:        dbClient,
		Records:   records,
		Ledger:    ledgerRepo,
		Outbox:    emitter,
		Metrics:   inventoryMetrics,
		BatchSize: cfg.Inventory.AuditBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger audit job: %w", err)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(conn),
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	registry := cron.NewRegistry()
	registry.RegisterEvery(lowStockJob, cfg.Inventory.LowStockInterval)
	registry.RegisterEvery(auditJob, dailyJobInterval)
	registry.RegisterEvery(retentionJob, dailyJobInterval)
	return registry, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}
