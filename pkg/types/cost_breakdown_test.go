package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCostBreakdownScanFromDriverValue(t *testing.T) {
	id := uuid.New()
	in := CostBreakdown{
		Ingredients: []IngredientCost{{
			IngredientID: id,
			Name:         "flour",
			Quantity:     decimal.NewFromInt(2),
			UnitCost:     decimal.NewFromInt(5000),
			CostSource:   CostSourceWAC,
			Cost:         decimal.NewFromInt(10000),
		}},
		Labor:    LaborCost{PerServing: decimal.NewFromInt(5000), Total: decimal.NewFromInt(25000), Source: "default"},
		Overhead: OverheadCost{PerUnit: decimal.NewFromInt(500), Total: decimal.NewFromInt(2500), Policy: "volume"},
	}

	raw, err := in.Value()
	require.NoError(t, err)

	var out CostBreakdown
	require.NoError(t, out.Scan(raw))

	line, ok := out.Ingredient(id)
	require.True(t, ok)
	require.True(t, line.Cost.Equal(decimal.NewFromInt(10000)))
	require.Equal(t, "volume", out.Overhead.Policy)
	require.NotNil(t, out.Operational, "operational list should decode as empty, not null")
}

func TestCostBreakdownScanRejectsUnknownType(t *testing.T) {
	var out CostBreakdown
	require.Error(t, out.Scan(42))
	require.NoError(t, out.Scan(nil))
	require.Empty(t, out.Ingredients)
}

func TestAffectedComponentsNilValue(t *testing.T) {
	var a AffectedComponents
	raw, err := a.Value()
	require.NoError(t, err)
	require.Equal(t, "[]", raw)

	require.NoError(t, a.Scan(`[{"kind":"labor","name":"labor","old_value":"1","new_value":"2","change_percentage":"100"}]`))
	require.Len(t, a, 1)
	require.Equal(t, ComponentLabor, a[0].Kind)
}
