package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OperationalCost is a recurring business expense (rent, utilities, ...).
// Active rows make up the overhead pool.
type OperationalCost struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name      string          `gorm:"type:text;not null"`
	Category  string          `gorm:"type:text;not null;default:'other'"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	IsActive  bool            `gorm:"not null;default:true"`
	CreatedAt time.Time       `gorm:"type:timestamptz;not null;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"type:timestamptz;not null;autoUpdateTime"`
}

func (c *OperationalCost) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
