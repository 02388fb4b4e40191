package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/umkmkit/hpp-backend/api"
	"github.com/umkmkit/hpp-backend/api/controllers"
	"github.com/umkmkit/hpp-backend/api/routes"
	"github.com/umkmkit/hpp-backend/internal/alerts"
	"github.com/umkmkit/hpp-backend/internal/costing"
	"github.com/umkmkit/hpp-backend/internal/hpp"
	"github.com/umkmkit/hpp-backend/internal/overhead"
	"github.com/umkmkit/hpp-backend/internal/production"
	"github.com/umkmkit/hpp-backend/internal/recipes"
	"github.com/umkmkit/hpp-backend/internal/snapshots"
	"github.com/umkmkit/hpp-backend/internal/wac"
	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db"
	"github.com/umkmkit/hpp-backend/pkg/instance"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/metrics"
	"github.com/umkmkit/hpp-backend/pkg/migrate"
	pkgredis "github.com/umkmkit/hpp-backend/pkg/redis"
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
	cfg.Service.Kind = "api"

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hppMetrics := metrics.NewHPPMetrics(registry)

	var (
		redisPinger controllers.Pinger
		idempotency pkgredis.IdempotencyStore
		cache       snapshots.Cache
		locker      wac.Locker = wac.NewKeyedMutex()
	)
	if cfg.Redis.Enabled() {
		redisClient, err := pkgredis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisPinger = redisClient
		idempotency = redisClient
		cache = redisClient
		locker = wac.Chain{
			wac.NewKeyedMutex(),
			wac.NewRedisLocker(redislock.New(redisClient.Raw()), redisClient.LockKey("ingredient")+":", 0, logg),
		}
	} else {
		logg.Warn(context.Background(), "redis disabled; using in-process locks without snapshot cache or idempotency")
	}

	conn := dbClient.DB()
	recipeRepo := recipes.NewRepository(conn)
	productionRepo := production.NewRepository(conn)

	snapshotSvc, err := snapshots.NewService(snapshots.NewRepository(conn), cache, cfg.HPP, logg)
	requireService(logg, "snapshot", err)
	alertSvc, err := alerts.NewService(alerts.NewRepository(conn), cfg.HPP, logg, hppMetrics)
	requireService(logg, "alert", err)
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
	requireService(logg, "hpp", err)

	var listener wac.CostChangeListener
	if cfg.FeatureFlags.RecalculateOnPurchase {
		listener = hppSvc
	}
	wacSvc, err := wac.NewService(wac.ServiceParams{
		Repo:     wac.NewRepository(conn),
		Tx:       dbClient,
		Locker:   locker,
		Logger:   logg,
		Metrics:  hppMetrics,
		Config:   cfg.HPP,
		Listener: listener,
	})
	requireService(logg, "wac", err)

	handler := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisPinger,
		Idempotency: idempotency,
		Gatherer:    registry,
		WAC:         wacSvc,
		HPP:         hppSvc,
		Snapshots:   snapshotSvc,
		Alerts:      alertSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	if err := api.NewServer(addr, handler, logg).Run(ctx); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
