package costing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/internal/production"
	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

// Labor sources recorded on the cost breakdown.
const (
	LaborSourceOverride = "override"
	LaborSourceBatches  = "production_batches"
	LaborSourceWindow   = "production_window"
	LaborSourceDefault  = "default"
)

// LaborHistory is the part of the production repository labor resolution
// reads.
type LaborHistory interface {
	RecentCompletedBatches(ctx context.Context, recipeID uuid.UUID, limit int) (production.LaborSample, error)
	CompletedBatchesSince(ctx context.Context, recipeID uuid.UUID, since time.Time) (production.LaborSample, error)
}

// Labor is the resolved labor cost per serving and where it came from.
type Labor struct {
	PerServing decimal.Decimal
	Source     string
}

// LaborResolver picks the labor cost per serving for a recipe.
type LaborResolver struct {
	history LaborHistory
	cfg     config.HPPConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewLaborResolver builds a resolver. A nil history always yields the
// configured default.
func NewLaborResolver(history LaborHistory, cfg config.HPPConfig, logg *logger.Logger) *LaborResolver {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LaborResolver{
		history: history,
		cfg:     cfg,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Resolve prefers the recipe override, then the production history average,
// then the configured default. History read failures degrade to the default.
func (r *LaborResolver) Resolve(ctx context.Context, recipe *models.Recipe) Labor {
	if recipe.LaborCostOverride != nil && !recipe.LaborCostOverride.IsNegative() {
		return Labor{PerServing: *recipe.LaborCostOverride, Source: LaborSourceOverride}
	}
	fallback := Labor{PerServing: r.cfg.DefaultLaborPerServing, Source: LaborSourceDefault}
	if r.history == nil {
		return fallback
	}

	var (
		sample production.LaborSample
		err    error
		source string
	)
	if r.cfg.LaborMode == config.LaborModeWindow {
		sample, err = r.history.CompletedBatchesSince(ctx, recipe.ID, r.now().Add(-r.cfg.LaborWindow()))
		source = LaborSourceWindow
	} else {
		sample, err = r.history.RecentCompletedBatches(ctx, recipe.ID, r.cfg.LaborLookbackBatches)
		source = LaborSourceBatches
	}
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "production history unavailable; using default labor cost")
		return fallback
	}

	perUnit, ok := sample.PerUnit()
	if !ok {
		return fallback
	}
	return Labor{PerServing: perUnit.Round(moneyScale), Source: source}
}
