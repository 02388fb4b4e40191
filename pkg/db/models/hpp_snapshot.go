package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/pkg/types"
)

// HPPSnapshot is an immutable record of one cost calculation. HPPValue is the
// cost per serving; MarginPercentage is in percent.
type HPPSnapshot struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey"`
	RecipeID         uuid.UUID           `gorm:"type:uuid;not null;index"`
	SnapshotDate     time.Time           `gorm:"type:timestamptz;not null"`
	HPPValue         decimal.Decimal     `gorm:"column:hpp_value;type:numeric(14,4);not null"`
	MaterialCost     decimal.Decimal     `gorm:"type:numeric(14,4);not null"`
	LaborCost        decimal.Decimal     `gorm:"type:numeric(14,4);not null"`
	OperationalCost  decimal.Decimal     `gorm:"type:numeric(14,4);not null"`
	TotalCost        decimal.Decimal     `gorm:"type:numeric(14,4);not null"`
	Servings         int                 `gorm:"not null"`
	CostBreakdown    types.CostBreakdown `gorm:"type:jsonb;not null"`
	SellingPrice     *decimal.Decimal    `gorm:"type:numeric(14,4)"`
	MarginPercentage *decimal.Decimal    `gorm:"type:numeric(9,4)"`
	CreatedAt        time.Time           `gorm:"type:timestamptz;not null;autoCreateTime"`
}

func (HPPSnapshot) TableName() string {
	return "hpp_snapshots"
}

func (s *HPPSnapshot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
