package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/pkg/enums"
)

// ProductionBatch records a finished (or planned) production run. The cost
// engine only reads it.
type ProductionBatch struct {
	ID             uuid.UUID              `gorm:"type:uuid;primaryKey"`
	RecipeID       uuid.UUID              `gorm:"type:uuid;not null;index"`
	Status         enums.ProductionStatus `gorm:"type:production_status;not null"`
	ActualQuantity decimal.Decimal        `gorm:"type:numeric(14,4);not null;default:0"`
	LaborCost      decimal.Decimal        `gorm:"type:numeric(14,4);not null;default:0"`
	ProducedAt     time.Time              `gorm:"type:timestamptz;not null"`
	CreatedAt      time.Time              `gorm:"type:timestamptz;not null;autoCreateTime"`
}

func (b *ProductionBatch) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
