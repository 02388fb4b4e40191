package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/umkmkit/hpp-backend/internal/alerts"
	"github.com/umkmkit/hpp-backend/internal/costing"
	"github.com/umkmkit/hpp-backend/internal/cron"
	"github.com/umkmkit/hpp-backend/internal/hpp"
	"github.com/umkmkit/hpp-backend/internal/overhead"
	"github.com/umkmkit/hpp-backend/internal/production"
	"github.com/umkmkit/hpp-backend/internal/recipes"
	"github.com/umkmkit/hpp-backend/internal/snapshots"
	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db"
	"github.com/umkmkit/hpp-backend/pkg/instance"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/metrics"
	"github.com/umkmkit/hpp-backend/pkg/migrate"
	"github.com/umkmkit/hpp-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	jobName := flag.String("job", "", "run only the named job and exit")
	flag.Parse()

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

	var (
		lock  cron.Lock = cron.NewLocalLock()
		cache snapshots.Cache
	)
	if cfg.Redis.Enabled() {
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
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker", lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
		cache = redisClient
	} else {
		logg.Warn(context.Background(), "redis disabled; cron lock only guards this process")
	}

	hppMetrics := metrics.NewHPPMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	recipeRepo := recipes.NewRepository(conn)
	productionRepo := production.NewRepository(conn)

	snapshotSvc, err := snapshots.NewService(snapshots.NewRepository(conn), cache, cfg.HPP, logg)
	requireResource(logg, "snapshot service", err)
	alertSvc, err := alerts.NewService(alerts.NewRepository(conn), cfg.HPP, logg, hppMetrics)
	requireResource(logg, "alert service", err)
	hppSvc, err := hpp.NewService(hpp.ServiceParams{
		Recipes:   recipeRepo,
		Periods:   overhead.NewService(overhead.NewRepository(conn), productionRepo, recipeRepo, cfg.HPP, logg),
		Labor:     costing.NewLaborResolver(productionRepo, cfg.HPP, logg),
		Snapshots: snapshotSvc,
		Alerts:    alertSvc,
		Config:    cfg.HPP,
		Logger:    logg,
		Metrics:   hppMetrics,
	})
	requireResource(logg, "hpp service", err)

	snapshotJob, err := cron.NewHPPSnapshotJob(cron.HPPSnapshotJobParams{
		Logger:  logg,
		HPP:     hppSvc,
		Enabled: cfg.FeatureFlags.AutoSnapshot,
	})
	requireResource(logg, "hpp snapshot job", err)
	retentionJob, err := cron.NewSnapshotRetentionJob(cron.SnapshotRetentionJobParams{
		Logger:    logg,
		Snapshots: snapshotSvc,
	})
	requireResource(logg, "snapshot retention job", err)

	registry, err := cron.NewRegistry(snapshotJob, retentionJob)
	requireResource(logg, "cron registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	requireResource(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	switch {
	case *jobName != "":
		if err := service.RunJob(ctx, *jobName); err != nil {
			logg.Error(ctx, "cron job run failed", err)
			os.Exit(1)
		}
		return
	case *once:
		result, err := service.RunOnce(ctx)
		if err != nil || len(result.Failed) > 0 {
			logg.Error(logg.WithField(ctx, "failed", result.Failed), "cron cycle did not complete cleanly", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
