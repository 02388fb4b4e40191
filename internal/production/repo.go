// Package production answers the volume and labor questions the cost engine
// asks about finished production batches.
package production

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/internal/repo"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
)

// LaborSample aggregates labor spend over a set of completed batches.
type LaborSample struct {
	Batches   int
	LaborCost decimal.Decimal
	Quantity  decimal.Decimal
}

// PerUnit returns labor cost per produced unit, or false when the sample
// produced nothing.
func (s LaborSample) PerUnit() (decimal.Decimal, bool) {
	if s.Batches == 0 || !s.Quantity.IsPositive() {
		return decimal.Zero, false
	}
	return s.LaborCost.Div(s.Quantity), true
}

// Repository reads completed production batches.
type Repository interface {
	VolumeByRecipe(ctx context.Context, since time.Time) (map[uuid.UUID]decimal.Decimal, error)
	RecentCompletedBatches(ctx context.Context, recipeID uuid.UUID, limit int) (LaborSample, error)
	CompletedBatchesSince(ctx context.Context, recipeID uuid.UUID, since time.Time) (LaborSample, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a production repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) completed(ctx context.Context) *gorm.DB {
	return r.DB(ctx).Model(&models.ProductionBatch{}).Where("status = ?", enums.ProductionStatusCompleted)
}

// VolumeByRecipe returns units produced per recipe by batches completed since
// the given time. Recipes without batches are absent.
func (r *repository) VolumeByRecipe(ctx context.Context, since time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	var batches []models.ProductionBatch
	if err := r.completed(ctx).
		Select("recipe_id", "actual_quantity").
		Where("produced_at >= ?", since).
		Find(&batches).Error; err != nil {
		return nil, err
	}
	volumes := make(map[uuid.UUID]decimal.Decimal)
	for _, b := range batches {
		volumes[b.RecipeID] = volumes[b.RecipeID].Add(b.ActualQuantity)
	}
	return volumes, nil
}

func (r *repository) RecentCompletedBatches(ctx context.Context, recipeID uuid.UUID, limit int) (LaborSample, error) {
	var batches []models.ProductionBatch
	if err := r.completed(ctx).
		Where("recipe_id = ?", recipeID).
		Order("produced_at DESC").
		Limit(limit).
		Find(&batches).Error; err != nil {
		return LaborSample{}, err
	}
	return sample(batches), nil
}

func (r *repository) CompletedBatchesSince(ctx context.Context, recipeID uuid.UUID, since time.Time) (LaborSample, error) {
	var batches []models.ProductionBatch
	if err := r.completed(ctx).
		Where("recipe_id = ? AND produced_at >= ?", recipeID, since).
		Find(&batches).Error; err != nil {
		return LaborSample{}, err
	}
	return sample(batches), nil
}

// Sums are taken in Go so numeric precision survives on both Postgres and
// SQLite.
func sample(batches []models.ProductionBatch) LaborSample {
	s := LaborSample{Batches: len(batches), LaborCost: decimal.Zero, Quantity: decimal.Zero}
	for _, b := range batches {
		s.LaborCost = s.LaborCost.Add(b.LaborCost)
		s.Quantity = s.Quantity.Add(b.ActualQuantity)
	}
	return s
}
