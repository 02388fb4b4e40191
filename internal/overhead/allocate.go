// Package overhead spreads the operational cost pool over produced units.
package overhead

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

const rateScale = 4

// Allocation policies.
const (
	PolicyNone       = "none"
	PolicyVolume     = "volume"
	PolicyEqualSplit = "equal_split"
	PolicyDefault    = "default"
)

// Period is the overhead picture for one trailing window. It is loaded once
// per run and shared read-only by every recipe calculation.
type Period struct {
	From             time.Time
	To               time.Time
	PoolTotal        decimal.Decimal
	Categories       []types.OperationalCostShare
	TotalVolume      decimal.Decimal
	RecipeVolumes    map[uuid.UUID]decimal.Decimal
	RecipeCount      int64
	RecipeCountKnown bool
	// PoolUnavailable is set when the operational costs could not be read.
	PoolUnavailable bool
}

// UnitsProduced is the recipe's production volume in the period. Without
// completed batches in the window it falls back to the recipe's batch yield.
func (p Period) UnitsProduced(recipeID uuid.UUID, batchYield int) decimal.Decimal {
	if v, ok := p.RecipeVolumes[recipeID]; ok && v.IsPositive() {
		return v
	}
	return decimal.NewFromInt(int64(batchYield))
}

// AllocationInput asks for the overhead rate of a recipe that produced
// UnitsProduced units in the period.
type AllocationInput struct {
	UnitsProduced decimal.Decimal
	Period        Period
}

// Allocation is an overhead rate per produced unit. Categories splits the
// rate by operational cost category.
type Allocation struct {
	PerUnit    decimal.Decimal
	Policy     string
	Categories []types.OperationalCostShare
}

// Allocate returns the overhead per unit. With production volume in the
// period the pool is spread evenly over every unit produced; without it the
// pool is split evenly over active recipes and then over the recipe's units.
func Allocate(in AllocationInput, cfg config.HPPConfig) Allocation {
	p := in.Period
	if p.PoolUnavailable {
		return Allocation{
			PerUnit:    cfg.DefaultOverheadPerServing,
			Policy:     PolicyDefault,
			Categories: []types.OperationalCostShare{},
		}
	}
	if !p.PoolTotal.IsPositive() {
		return Allocation{PerUnit: decimal.Zero, Policy: PolicyNone, Categories: []types.OperationalCostShare{}}
	}

	if p.TotalVolume.IsPositive() {
		return withCategories(Allocation{
			PerUnit: p.PoolTotal.Div(p.TotalVolume).Round(rateScale),
			Policy:  PolicyVolume,
		}, p)
	}

	count := p.RecipeCount
	if !p.RecipeCountKnown {
		count = int64(cfg.FallbackRecipeCount)
	}
	if count < 1 {
		count = 1
	}
	units := in.UnitsProduced
	if !units.IsPositive() {
		units = decimal.NewFromInt(1)
	}
	perRecipe := p.PoolTotal.Div(decimal.NewFromInt(count))
	return withCategories(Allocation{
		PerUnit: perRecipe.Div(units).Round(rateScale),
		Policy:  PolicyEqualSplit,
	}, p)
}

func withCategories(a Allocation, p Period) Allocation {
	a.Categories = make([]types.OperationalCostShare, 0, len(p.Categories))
	for _, c := range p.Categories {
		a.Categories = append(a.Categories, types.OperationalCostShare{
			Category: c.Category,
			Amount:   a.PerUnit.Mul(c.Amount).Div(p.PoolTotal).Round(rateScale),
		})
	}
	return a
}
