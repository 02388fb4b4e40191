// Package costing turns recipe lines, labor and allocated overhead into a
// cost of goods figure.
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/db/models"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

// moneyScale is the precision stored in every numeric(14,4) cost column.
const moneyScale = 4

// MaterialResult is the raw ingredient cost of one recipe batch.
type MaterialResult struct {
	Total       decimal.Decimal
	Ingredients []types.IngredientCost
	// Empty is set when the recipe has no lines; the total is then zero.
	Empty bool
	// Missing counts lines whose ingredient no longer exists.
	Missing int
}

// MaterialCost prices every recipe line at the ingredient's weighted average
// cost, falling back to the last purchase price. Lines pointing at a missing
// ingredient contribute nothing and are flagged.
func MaterialCost(recipe *models.Recipe) (MaterialResult, error) {
	if recipe == nil {
		return MaterialResult{}, pkgerrors.New(pkgerrors.CodeValidation, "recipe is required")
	}

	result := MaterialResult{
		Total:       decimal.Zero,
		Ingredients: make([]types.IngredientCost, 0, len(recipe.Ingredients)),
		Empty:       len(recipe.Ingredients) == 0,
	}
	for i, line := range recipe.Ingredients {
		if line.Quantity.IsNegative() {
			return MaterialResult{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line %d has a negative quantity", i+1)).
				WithDetails(map[string]any{"ingredient_id": line.IngredientID.String()})
		}

		entry := types.IngredientCost{
			IngredientID: line.IngredientID,
			Quantity:     line.Quantity,
			Unit:         line.Unit,
			UnitCost:     decimal.Zero,
			Cost:         decimal.Zero,
		}
		if line.Ingredient == nil {
			entry.CostSource = types.CostSourceMissing
			entry.Missing = true
			result.Missing++
			result.Ingredients = append(result.Ingredients, entry)
			continue
		}

		unitCost, fromWAC := line.Ingredient.UnitCost()
		if unitCost.IsNegative() {
			return MaterialResult{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("ingredient %q has a negative unit cost", line.Ingredient.Name)).
				WithDetails(map[string]any{"ingredient_id": line.IngredientID.String()})
		}
		entry.Name = line.Ingredient.Name
		entry.UnitCost = unitCost
		entry.CostSource = types.CostSourcePricePerUnit
		if fromWAC {
			entry.CostSource = types.CostSourceWAC
		}
		entry.Cost = line.Quantity.Mul(unitCost).Round(moneyScale)

		result.Total = result.Total.Add(entry.Cost)
		result.Ingredients = append(result.Ingredients, entry)
	}
	return result, nil
}
