package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	"github.com/umkmkit/hpp-backend/pkg/pagination"
)

// Repository exposes persistence helpers for HPP alerts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alert *models.HPPAlert) error
	// ExistsOpen reports an unread, undismissed alert of alertType for the
	// recipe. A nil since matches any age.
	ExistsOpen(ctx context.Context, recipeID uuid.UUID, alertType enums.HPPAlertType, since *time.Time) (bool, error)
	// CreateIfNoneOpen inserts alert unless ExistsOpen matches, and reports
	// whether it inserted.
	CreateIfNoneOpen(ctx context.Context, alert *models.HPPAlert, since *time.Time) (bool, error)
	List(ctx context.Context, params listAlertsParams) ([]models.HPPAlert, *pagination.Cursor, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.HPPAlert, error)
	Acknowledge(ctx context.Context, id uuid.UUID, read, dismiss bool, now time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an alerts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listAlertsParams struct {
	RecipeID           *uuid.UUID
	Limit              int
	Cursor             *pagination.Cursor
	UnacknowledgedOnly bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, alert *models.HPPAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// CreateIfNoneOpen runs the open-alert check and the insert in one
// transaction holding the recipe row lock, so two evaluations of the same
// recipe cannot both insert.
func (r *repositoryImpl) CreateIfNoneOpen(ctx context.Context, alert *models.HPPAlert, since *time.Time) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", alert.RecipeID).
			Take(&recipe).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		txRepo := &repositoryImpl{db: tx}
		exists, err := txRepo.ExistsOpen(ctx, alert.RecipeID, alert.AlertType, since)
		if err != nil || exists {
			return err
		}
		if err := txRepo.Create(ctx, alert); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *repositoryImpl) ExistsOpen(ctx context.Context, recipeID uuid.UUID, alertType enums.HPPAlertType, since *time.Time) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.HPPAlert{}).
		Where("recipe_id = ? AND alert_type = ? AND is_read = ? AND is_dismissed = ?", recipeID, alertType, false, false)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	var count int64
	if err := query.Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listAlertsParams) ([]models.HPPAlert, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.HPPAlert{})
	if params.RecipeID != nil {
		query = query.Where("recipe_id = ?", *params.RecipeID)
	}
	if params.UnacknowledgedOnly {
		query = query.Where("is_read = ? AND is_dismissed = ?", false, false)
	}
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var alerts []models.HPPAlert
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&alerts).Error; err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(alerts, params.Limit, func(a models.HPPAlert) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	return page, next, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.HPPAlert, error) {
	var alert models.HPPAlert
	if err := r.db.WithContext(ctx).First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// Acknowledge sets the requested flags. Timestamps already set are kept, so
// repeating an acknowledgement changes nothing.
func (r *repositoryImpl) Acknowledge(ctx context.Context, id uuid.UUID, read, dismiss bool, now time.Time) error {
	db := r.db.WithContext(ctx)
	if read || dismiss {
		if err := db.Model(&models.HPPAlert{}).
			Where("id = ? AND read_at IS NULL", id).
			Updates(map[string]any{"is_read": true, "read_at": now, "updated_at": now}).Error; err != nil {
			return err
		}
	}
	if dismiss {
		if err := db.Model(&models.HPPAlert{}).
			Where("id = ? AND dismissed_at IS NULL", id).
			Updates(map[string]any{"is_dismissed": true, "dismissed_at": now, "updated_at": now}).Error; err != nil {
			return err
		}
	}
	return nil
}
