package costing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/config"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Input gathers everything needed to price one recipe batch. Overhead values
// are per produced unit. CostBasis is one of the config.CostBasis values; an
// empty basis is treated as config.CostBasisBatch.
type Input struct {
	RecipeID           uuid.UUID
	Servings           int
	CostBasis          string
	Material           MaterialResult
	Labor              Labor
	OverheadPerUnit    decimal.Decimal
	OverheadPolicy     string
	OverheadCategories []types.OperationalCostShare
	TargetMargin       *decimal.Decimal
	SellingPrice       *decimal.Decimal
}

// Result is a computed cost of goods. Money fields are for the whole batch
// unless the name says otherwise.
type Result struct {
	RecipeID                   uuid.UUID           `json:"recipe_id"`
	Servings                   int                 `json:"servings"`
	MaterialCost               decimal.Decimal     `json:"material_cost"`
	LaborCost                  decimal.Decimal     `json:"labor_cost"`
	OverheadCost               decimal.Decimal     `json:"overhead_cost"`
	TotalCost                  decimal.Decimal     `json:"total_cost"`
	CostPerUnit                decimal.Decimal     `json:"cost_per_unit"`
	TargetMargin               *decimal.Decimal    `json:"target_margin,omitempty"`
	RecommendedPrice           *decimal.Decimal    `json:"recommended_price,omitempty"`
	RecommendedPricePerServing *decimal.Decimal    `json:"recommended_price_per_serving,omitempty"`
	SellingPrice               *decimal.Decimal    `json:"selling_price,omitempty"`
	Profit                     *decimal.Decimal    `json:"profit,omitempty"`
	MarginPercentage           *decimal.Decimal    `json:"margin_percentage,omitempty"`
	EmptyRecipe                bool                `json:"empty_recipe,omitempty"`
	Breakdown                  types.CostBreakdown `json:"cost_breakdown"`
}

// Calculate combines material, labor and overhead into total cost, cost per
// unit and, when asked, a recommended price for a target margin. On the batch
// basis total = material + labor + overhead per unit; on the per serving basis
// labor and overhead are multiplied by servings before they are added.
func Calculate(in Input) (*Result, error) {
	if in.Servings <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "servings must be greater than zero")
	}
	if err := ValidateMargin(in.TargetMargin); err != nil {
		return nil, err
	}
	if in.Labor.PerServing.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "labor cost must not be negative")
	}
	if in.OverheadPerUnit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "overhead per unit must not be negative")
	}

	servings := decimal.NewFromInt(int64(in.Servings))
	factor := decimal.NewFromInt(1)
	if in.CostBasis == config.CostBasisPerServing {
		factor = servings
	}
	laborCost := in.Labor.PerServing.Mul(factor).Round(moneyScale)
	overheadCost := in.OverheadPerUnit.Mul(factor).Round(moneyScale)
	total := in.Material.Total.Add(laborCost).Add(overheadCost)

	result := &Result{
		RecipeID:     in.RecipeID,
		Servings:     in.Servings,
		MaterialCost: in.Material.Total,
		LaborCost:    laborCost,
		OverheadCost: overheadCost,
		TotalCost:    total,
		CostPerUnit:  total.Div(servings).Round(moneyScale),
		EmptyRecipe:  in.Material.Empty,
		Breakdown: types.CostBreakdown{
			Ingredients: in.Material.Ingredients,
			Labor: types.LaborCost{
				PerServing: in.Labor.PerServing,
				Total:      laborCost,
				Source:     in.Labor.Source,
			},
			Overhead: types.OverheadCost{
				PerUnit: in.OverheadPerUnit,
				Total:   overheadCost,
				Policy:  in.OverheadPolicy,
			},
			Operational: scaleShares(in.OverheadCategories, factor),
		},
	}

	if in.TargetMargin != nil {
		margin := *in.TargetMargin
		price := RecommendedPrice(total, margin)
		perServing := price.Div(servings).Round(moneyScale)
		result.TargetMargin = &margin
		result.RecommendedPrice = &price
		result.RecommendedPricePerServing = &perServing
	}

	if in.SellingPrice != nil && in.SellingPrice.IsPositive() {
		price := *in.SellingPrice
		profit := price.Sub(result.CostPerUnit)
		margin := MarginPercent(price, result.CostPerUnit)
		result.SellingPrice = &price
		result.Profit = &profit
		result.MarginPercentage = &margin
	}
	return result, nil
}

// ValidateMargin accepts a nil margin or one in [0, 1).
func ValidateMargin(m *decimal.Decimal) error {
	if m == nil {
		return nil
	}
	if m.IsNegative() || m.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "target margin must be at least 0 and below 1").
			WithDetails(map[string]any{"target_margin": m.String()})
	}
	return nil
}

// RecommendedPrice is the price at which cost leaves the margin m of revenue.
// m must already be validated.
func RecommendedPrice(cost, m decimal.Decimal) decimal.Decimal {
	return cost.Div(decimal.NewFromInt(1).Sub(m)).Round(moneyScale)
}

// MarginPercent is (price - cost) / price in percent. price must be positive.
func MarginPercent(price, cost decimal.Decimal) decimal.Decimal {
	return price.Sub(cost).Div(price).Mul(hundred).Round(moneyScale)
}

func scaleShares(perUnit []types.OperationalCostShare, factor decimal.Decimal) []types.OperationalCostShare {
	if len(perUnit) == 0 {
		return []types.OperationalCostShare{}
	}
	out := make([]types.OperationalCostShare, 0, len(perUnit))
	for _, share := range perUnit {
		out = append(out, types.OperationalCostShare{
			Category: share.Category,
			Amount:   share.Amount.Mul(factor).Round(moneyScale),
		})
	}
	return out
}
