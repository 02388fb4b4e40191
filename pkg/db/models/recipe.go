package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Recipe yields Servings units per batch. SellingPrice and LaborCostOverride
// are per serving.
type Recipe struct {
	ID                uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Name              string             `gorm:"type:text;not null"`
	Servings          int                `gorm:"not null"`
	SellingPrice      *decimal.Decimal   `gorm:"type:numeric(14,4)"`
	LaborCostOverride *decimal.Decimal   `gorm:"type:numeric(14,4)"`
	IsActive          bool               `gorm:"not null;default:true"`
	Ingredients       []RecipeIngredient `gorm:"foreignKey:RecipeID"`
	CreatedAt         time.Time          `gorm:"type:timestamptz;not null;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"type:timestamptz;not null;autoUpdateTime"`
}

func (r *Recipe) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RecipeIngredient is one ordered line of a recipe. Ingredient is nil when
// the referenced ingredient no longer exists.
type RecipeIngredient struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RecipeID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	IngredientID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position     int             `gorm:"not null;default:0"`
	Quantity     decimal.Decimal `gorm:"type:numeric(14,4);not null"`
	Unit         string          `gorm:"type:text;not null"`
	Ingredient   *Ingredient     `gorm:"foreignKey:IngredientID"`
}

func (r *RecipeIngredient) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
