package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umkmkit/hpp-backend/api/controllers"
	"github.com/umkmkit/hpp-backend/api/middleware"
	"github.com/umkmkit/hpp-backend/internal/alerts"
	"github.com/umkmkit/hpp-backend/internal/hpp"
	"github.com/umkmkit/hpp-backend/internal/snapshots"
	"github.com/umkmkit/hpp-backend/internal/wac"
	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	pkgredis "github.com/umkmkit/hpp-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers. DB is required;
// Redis, Idempotency and Gatherer are optional.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	WAC       wac.Service
	HPP       hpp.Service
	Snapshots snapshots.Service
	Alerts    alerts.Service
}

func NewRouter(d Deps) http.Handler {
	logg := d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	replayable := func(ttl time.Duration) func(http.Handler) http.Handler {
		return middleware.Idempotent(d.Idempotency, ttl, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, logg, d.DB, d.Redis))
	})

	if d.Gatherer != nil && d.Config.Metrics.Enabled {
		r.Handle(d.Config.Metrics.Path, promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/ingredients/{ingredientID}", func(r chi.Router) {
			r.With(replayable(middleware.StockReplayTTL)).Post("/transactions", controllers.RecordStockTransaction(d.WAC, logg))
			r.Get("/transactions", controllers.ListStockTransactions(d.WAC, logg))
			r.Get("/reconcile", controllers.ReconcileIngredient(d.WAC, logg))
		})

		r.Route("/recipes/{recipeID}", func(r chi.Router) {
			r.Post("/hpp", controllers.CalculateHPP(d.HPP, logg))
			r.Get("/snapshots", controllers.ListSnapshots(d.Snapshots, logg))
			r.Get("/trend", controllers.CompareTrend(d.Snapshots, logg))
		})

		r.With(replayable(middleware.ReplayTTL)).Post("/hpp/recalculate", controllers.RecalculateHPP(d.HPP, logg))

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", controllers.ListAlerts(d.Alerts, logg))
			r.With(replayable(middleware.ReplayTTL)).Post("/{alertID}/acknowledge", controllers.AcknowledgeAlert(d.Alerts, logg))
		})
	})

	return r
}
