package wac

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/internal/repo"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
)

// Repository manages ingredient cost positions and the stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error)
	// UpdatePosition writes stock, cost and price only when the stored version
	// still equals expectedVersion. It reports whether a row was updated.
	UpdatePosition(ctx context.Context, ingredient *models.Ingredient, expectedVersion int64) (bool, error)
	CreateTransaction(ctx context.Context, tx *models.StockTransaction) error
	ListTransactions(ctx context.Context, ingredientID uuid.UUID, limit int) ([]models.StockTransaction, error)
	ListAllTransactions(ctx context.Context, ingredientID uuid.UUID) ([]models.StockTransaction, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a WAC repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := r.DB(ctx).Where("id = ?", id).First(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *repository) UpdatePosition(ctx context.Context, ingredient *models.Ingredient, expectedVersion int64) (bool, error) {
	res := r.DB(ctx).
		Model(&models.Ingredient{}).
		Where("id = ? AND version = ?", ingredient.ID, expectedVersion).
		Updates(map[string]any{
			"current_stock":         ingredient.CurrentStock,
			"weighted_average_cost": ingredient.WeightedAverageCost,
			"price_per_unit":        ingredient.PricePerUnit,
			"version":               expectedVersion + 1,
			"updated_at":            time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	ingredient.Version = expectedVersion + 1
	return true, nil
}

func (r *repository) CreateTransaction(ctx context.Context, tx *models.StockTransaction) error {
	return r.DB(ctx).Create(tx).Error
}

func (r *repository) ListTransactions(ctx context.Context, ingredientID uuid.UUID, limit int) ([]models.StockTransaction, error) {
	var txs []models.StockTransaction
	if err := r.DB(ctx).
		Where("ingredient_id = ?", ingredientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repository) ListAllTransactions(ctx context.Context, ingredientID uuid.UUID) ([]models.StockTransaction, error) {
	var txs []models.StockTransaction
	if err := r.DB(ctx).
		Where("ingredient_id = ?", ingredientID).
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}
