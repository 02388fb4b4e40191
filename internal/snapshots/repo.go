package snapshots

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/pkg/db/models"
)

// Repository persists HPP snapshots. Snapshots are never updated; the only
// delete is the retention purge.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, snapshot *models.HPPSnapshot) error
	Latest(ctx context.Context, recipeID uuid.UUID) (*models.HPPSnapshot, error)
	List(ctx context.Context, recipeID uuid.UUID, from, to time.Time) ([]models.HPPSnapshot, error)
	// PurgeOlderThan deletes snapshots dated before cutoff and returns the
	// recipes that lost rows.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a snapshot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, snapshot *models.HPPSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// Latest returns nil, nil when the recipe has no snapshot yet.
func (r *repositoryImpl) Latest(ctx context.Context, recipeID uuid.UUID) (*models.HPPSnapshot, error) {
	var snapshots []models.HPPSnapshot
	if err := r.db.WithContext(ctx).
		Where("recipe_id = ?", recipeID).
		Order("snapshot_date DESC, created_at DESC").
		Limit(1).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// List returns snapshots oldest first. A zero from or to leaves that side
// open.
func (r *repositoryImpl) List(ctx context.Context, recipeID uuid.UUID, from, to time.Time) ([]models.HPPSnapshot, error) {
	query := r.db.WithContext(ctx).Where("recipe_id = ?", recipeID)
	if !from.IsZero() {
		query = query.Where("snapshot_date >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("snapshot_date <= ?", to)
	}
	var snapshots []models.HPPSnapshot
	if err := query.Order("snapshot_date ASC, created_at ASC").Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repositoryImpl) PurgeOlderThan(ctx context.Context, cutoff time.Time) ([]uuid.UUID, int64, error) {
	var (
		recipeIDs []uuid.UUID
		deleted   int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.HPPSnapshot{}).
			Where("snapshot_date < ?", cutoff).
			Distinct("recipe_id").
			Pluck("recipe_id", &recipeIDs).Error; err != nil {
			return err
		}
		if len(recipeIDs) == 0 {
			return nil
		}
		res := tx.Where("snapshot_date < ?", cutoff).Delete(&models.HPPSnapshot{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return recipeIDs, deleted, nil
}
