package recipes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/internal/repo"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
)

// Repository is the read model the cost engine uses for recipes. Recipe
// editing lives elsewhere.
type Repository interface {
	// Get loads the recipe with its ordered lines and their ingredients. A
	// line whose ingredient row is gone keeps a nil Ingredient.
	Get(ctx context.Context, id uuid.UUID) (*models.Recipe, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
	CountActive(ctx context.Context) (int64, error)
	ListActiveIDsByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a recipe repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	err := r.DB(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Ingredients.Ingredient").
		First(&recipe, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (r *repository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.Active(ctx, &models.Recipe{}).
		Order("name ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.Active(ctx, &models.Recipe{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) ListActiveIDsByIngredient(ctx context.Context, ingredientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.DB(ctx).
		Model(&models.Recipe{}).
		Distinct("recipes.id").
		Joins("JOIN recipe_ingredients ri ON ri.recipe_id = recipes.id").
		Where("ri.ingredient_id = ? AND recipes.is_active = ?", ingredientID, true).
		Pluck("recipes.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
