package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Component kinds listed on an alert.
const (
	ComponentIngredient = "ingredient"
	ComponentLabor      = "labor"
	ComponentOverhead   = "overhead"
)

// ComponentChange describes one cost component that moved between two
// snapshots. ChangePercentage is expressed in percent.
type ComponentChange struct {
	Kind             string          `json:"kind"`
	Ref              string          `json:"ref,omitempty"`
	Name             string          `json:"name"`
	OldValue         decimal.Decimal `json:"old_value"`
	NewValue         decimal.Decimal `json:"new_value"`
	ChangePercentage decimal.Decimal `json:"change_percentage"`
}

// AffectedComponents is stored as JSONB on hpp_alerts.
type AffectedComponents []ComponentChange

// Value marshals the list into JSON for Postgres.
func (a AffectedComponents) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	buf, err := json.Marshal([]ComponentChange(a))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the list.
func (a *AffectedComponents) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("affected components: %w", err)
	}
	var result []ComponentChange
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("affected components: %w", err)
	}
	*a = result
	return nil
}
