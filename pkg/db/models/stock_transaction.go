package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/umkmkit/hpp-backend/pkg/enums"
)

// StockTransaction is an append-only ledger row. Quantity is signed: positive
// for purchases, negative for usage.
type StockTransaction struct {
	ID              uuid.UUID                  `gorm:"type:uuid;primaryKey"`
	IngredientID    uuid.UUID                  `gorm:"type:uuid;not null;index"`
	TransactionType enums.StockTransactionType `gorm:"type:stock_transaction_type;not null"`
	Quantity        decimal.Decimal            `gorm:"type:numeric(14,4);not null"`
	UnitPrice       *decimal.Decimal           `gorm:"type:numeric(14,4)"`
	StockBefore     decimal.Decimal            `gorm:"type:numeric(14,4);not null"`
	StockAfter      decimal.Decimal            `gorm:"type:numeric(14,4);not null"`
	WACBefore       *decimal.Decimal           `gorm:"column:wac_before;type:numeric(14,4)"`
	WACAfter        *decimal.Decimal           `gorm:"column:wac_after;type:numeric(14,4)"`
	Note            *string                    `gorm:"type:text"`
	CreatedAt       time.Time                  `gorm:"type:timestamptz;not null;autoCreateTime"`
}

func (t *StockTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
