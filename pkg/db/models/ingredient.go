package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ingredient is a stocked raw material. WeightedAverageCost and CurrentStock
// are owned by the WAC ledger; Version guards concurrent ledger writes.
type Ingredient struct {
	ID                  uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Name                string           `gorm:"type:text;not null"`
	Unit                string           `gorm:"type:text;not null"`
	PricePerUnit        decimal.Decimal  `gorm:"type:numeric(14,4);not null;default:0"`
	WeightedAverageCost *decimal.Decimal `gorm:"type:numeric(14,4)"`
	CurrentStock        decimal.Decimal  `gorm:"type:numeric(14,4);not null;default:0"`
	IsActive            bool             `gorm:"not null;default:true"`
	Version             int64            `gorm:"not null;default:0"`
	CreatedAt           time.Time        `gorm:"type:timestamptz;not null;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"type:timestamptz;not null;autoUpdateTime"`
}

func (i *Ingredient) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// UnitCost returns the weighted average cost when known, otherwise the last
// purchase price.
func (i Ingredient) UnitCost() (decimal.Decimal, bool) {
	if i.WeightedAverageCost != nil {
		return *i.WeightedAverageCost, true
	}
	return i.PricePerUnit, false
}
