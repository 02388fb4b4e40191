package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cost sources for a recipe ingredient line.
const (
	CostSourceWAC          = "wac"
	CostSourcePricePerUnit = "price_per_unit"
	CostSourceMissing      = "missing"
)

// CostBreakdown is the persisted explanation of a computed HPP value. It is
// stored as JSONB on hpp_snapshots.
type CostBreakdown struct {
	Ingredients []IngredientCost       `json:"ingredients"`
	Labor       LaborCost              `json:"labor"`
	Overhead    OverheadCost           `json:"overhead"`
	Operational []OperationalCostShare `json:"operational"`
}

type IngredientCost struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CostSource   string          `json:"cost_source"`
	Cost         decimal.Decimal `json:"cost"`
	Missing      bool            `json:"missing,omitempty"`
}

type LaborCost struct {
	PerServing decimal.Decimal `json:"per_serving"`
	Total      decimal.Decimal `json:"total"`
	Source     string          `json:"source"`
}

type OverheadCost struct {
	PerUnit decimal.Decimal `json:"per_unit"`
	Total   decimal.Decimal `json:"total"`
	Policy  string          `json:"policy"`
}

// OperationalCostShare is one overhead category's share of the recipe's
// allocated overhead.
type OperationalCostShare struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Ingredient returns the line for the given ingredient, if present.
func (c CostBreakdown) Ingredient(id uuid.UUID) (IngredientCost, bool) {
	for _, line := range c.Ingredients {
		if line.IngredientID == id {
			return line, true
		}
	}
	return IngredientCost{}, false
}

// Value marshals the breakdown into JSON for Postgres.
func (c CostBreakdown) Value() (driver.Value, error) {
	normalized := c
	if normalized.Ingredients == nil {
		normalized.Ingredients = []IngredientCost{}
	}
	if normalized.Operational == nil {
		normalized.Operational = []OperationalCostShare{}
	}
	buf, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the breakdown.
func (c *CostBreakdown) Scan(value interface{}) error {
	if value == nil {
		*c = CostBreakdown{}
		return nil
	}

	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("cost breakdown: %w", err)
	}

	var result CostBreakdown
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("cost breakdown: %w", err)
	}
	*c = result
	return nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
