package wac

import (
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
)

// costScale matches the numeric(14,4) columns the ledger writes to.
const costScale = 4

// ApplyPurchase returns the stock and weighted average cost after buying qty
// units at price. current is the unit cost carried by the existing stock.
func ApplyPurchase(stock, current, qty, price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	newStock := stock.Add(qty)
	if !stock.IsPositive() {
		return newStock, price.Round(costScale)
	}
	value := stock.Mul(current).Add(qty.Mul(price))
	return newStock, value.Div(newStock).Round(costScale)
}

// ApplyUsage returns the stock after consuming qty units. Stock never goes
// below zero.
func ApplyUsage(stock, qty decimal.Decimal) decimal.Decimal {
	remaining := stock.Sub(qty)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Replay folds a chronologically ordered ledger into the stock and weighted
// average cost it implies. wac is nil when the ledger holds no purchase.
func Replay(txs []models.StockTransaction) (decimal.Decimal, *decimal.Decimal) {
	stock := decimal.Zero
	var wac *decimal.Decimal
	for _, tx := range txs {
		switch tx.TransactionType {
		case enums.StockTransactionPurchase:
			price := decimal.Zero
			if tx.UnitPrice != nil {
				price = *tx.UnitPrice
			}
			current := decimal.Zero
			if wac != nil {
				current = *wac
			}
			var next decimal.Decimal
			stock, next = ApplyPurchase(stock, current, tx.Quantity.Abs(), price)
			wac = &next
		case enums.StockTransactionUsage:
			stock = ApplyUsage(stock, tx.Quantity.Abs())
		}
	}
	return stock, wac
}
