package overhead

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

// VolumeSource reports units produced per recipe by completed batches.
type VolumeSource interface {
	VolumeByRecipe(ctx context.Context, since time.Time) (map[uuid.UUID]decimal.Decimal, error)
}

// RecipeCounter reports how many recipes share the pool.
type RecipeCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// Service loads overhead periods. Read failures never fail a load; each one
// degrades to the matching fallback policy.
type Service struct {
	costs   Repository
	volumes VolumeSource
	recipes RecipeCounter
	cfg     config.HPPConfig
	logg    *logger.Logger
}

// NewService wires the overhead period loader.
func NewService(costs Repository, volumes VolumeSource, recipes RecipeCounter, cfg config.HPPConfig, logg *logger.Logger) *Service {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{costs: costs, volumes: volumes, recipes: recipes, cfg: cfg, logg: logg}
}

// LoadPeriod reads the pool, production volume and active recipe count for
// the window ending at now.
func (s *Service) LoadPeriod(ctx context.Context, now time.Time) Period {
	period := Period{
		From:        now.Add(-s.cfg.OverheadWindow()),
		To:          now,
		PoolTotal:   decimal.Zero,
		TotalVolume: decimal.Zero,
		Categories:  []types.OperationalCostShare{},
	}

	costs, err := s.costs.ListActive(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "operational costs unavailable; using default overhead per serving")
		period.PoolUnavailable = true
		return period
	}
	byCategory := map[string]decimal.Decimal{}
	var order []string
	for _, c := range costs {
		period.PoolTotal = period.PoolTotal.Add(c.Amount)
		if _, ok := byCategory[c.Category]; !ok {
			order = append(order, c.Category)
		}
		byCategory[c.Category] = byCategory[c.Category].Add(c.Amount)
	}
	for _, category := range order {
		period.Categories = append(period.Categories, types.OperationalCostShare{Category: category, Amount: byCategory[category]})
	}

	if s.volumes != nil {
		volumes, err := s.volumes.VolumeByRecipe(ctx, period.From)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "production volume unavailable; splitting overhead evenly")
		} else {
			period.RecipeVolumes = volumes
			for _, v := range volumes {
				period.TotalVolume = period.TotalVolume.Add(v)
			}
		}
	}

	if s.recipes != nil {
		count, err := s.recipes.CountActive(ctx)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "active recipe count unavailable; using fallback count")
		} else {
			period.RecipeCount = count
			period.RecipeCountKnown = true
		}
	}
	return period
}

// Allocate applies the configured fallbacks to Allocate.
func (s *Service) Allocate(in AllocationInput) Allocation {
	return Allocate(in, s.cfg)
}
