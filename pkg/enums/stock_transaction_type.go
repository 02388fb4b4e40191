package enums

import "fmt"

// StockTransactionType maps to the stock_transaction_type enum in Postgres.
type StockTransactionType string

const (
	StockTransactionPurchase StockTransactionType = "purchase"
	StockTransactionUsage    StockTransactionType = "usage"
)

var validStockTransactionTypes = []StockTransactionType{
	StockTransactionPurchase,
	StockTransactionUsage,
}

// IsValid checks whether the value matches the canonical enum.
func (v StockTransactionType) IsValid() bool {
	for _, candidate := range validStockTransactionTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseStockTransactionType converts raw strings into StockTransactionType.
func ParseStockTransactionType(value string) (StockTransactionType, error) {
	for _, candidate := range validStockTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock transaction type %q", value)
}
