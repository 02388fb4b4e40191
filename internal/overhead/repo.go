package overhead

import (
	"context"

	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/internal/repo"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
)

// Repository reads the operational costs that make up the overhead pool.
type Repository interface {
	ListActive(ctx context.Context) ([]models.OperationalCost, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns an operational cost repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) ListActive(ctx context.Context) ([]models.OperationalCost, error) {
	var costs []models.OperationalCost
	if err := r.Active(ctx, &models.OperationalCost{}).
		Order("category ASC, name ASC").
		Find(&costs).Error; err != nil {
		return nil, err
	}
	return costs, nil
}
