package alerts

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/config"
	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

const percentScale = 4

var hundred = decimal.NewFromInt(100)

// Thresholds are the alert cut-offs as fractions (0.20 is 20 %).
type Thresholds struct {
	ChangeCritical  decimal.Decimal
	ChangeHigh      decimal.Decimal
	ChangeMedium    decimal.Decimal
	// Decrease is how far cost must fall before a decrease alert is raised.
	Decrease        decimal.Decimal
	MarginCritical  decimal.Decimal
	MarginHigh      decimal.Decimal
	CostSpike       decimal.Decimal
	ComponentChange decimal.Decimal
}

// ThresholdsFromConfig converts the configured float thresholds.
func ThresholdsFromConfig(cfg config.HPPConfig) Thresholds {
	return Thresholds{
		ChangeCritical:  decimal.NewFromFloat(cfg.ChangeCritical),
		ChangeHigh:      decimal.NewFromFloat(cfg.ChangeHigh),
		ChangeMedium:    decimal.NewFromFloat(cfg.ChangeMedium),
		Decrease:        decimal.NewFromFloat(cfg.DecreaseThreshold),
		MarginCritical:  decimal.NewFromFloat(cfg.MarginCritical),
		MarginHigh:      decimal.NewFromFloat(cfg.MarginHigh),
		CostSpike:       decimal.NewFromFloat(cfg.CostSpike),
		ComponentChange: decimal.NewFromFloat(cfg.ComponentChange),
	}
}

// EvaluateInput pairs a freshly saved snapshot with the one that was newest
// before it. Previous is nil for a recipe's first snapshot.
type EvaluateInput struct {
	RecipeName string
	Previous   *models.HPPSnapshot
	Current    *models.HPPSnapshot
}

// ChangeSeverity classifies a positive fractional cost change. The first
// threshold reached wins.
func (t Thresholds) ChangeSeverity(change decimal.Decimal) enums.AlertSeverity {
	switch {
	case change.GreaterThanOrEqual(t.ChangeCritical):
		return enums.AlertSeverityCritical
	case change.GreaterThanOrEqual(t.ChangeHigh):
		return enums.AlertSeverityHigh
	case change.GreaterThanOrEqual(t.ChangeMedium):
		return enums.AlertSeverityMedium
	default:
		return enums.AlertSeverityLow
	}
}

// MarginSeverity classifies a fractional margin. ok is false when the margin
// is healthy.
func (t Thresholds) MarginSeverity(margin decimal.Decimal) (enums.AlertSeverity, bool) {
	switch {
	case margin.LessThan(t.MarginCritical):
		return enums.AlertSeverityCritical, true
	case margin.LessThan(t.MarginHigh):
		return enums.AlertSeverityHigh, true
	default:
		return "", false
	}
}

// Evaluate returns the alert candidates for a new snapshot. Candidates are
// not yet de-duplicated or persisted.
func (t Thresholds) Evaluate(in EvaluateInput) []models.HPPAlert {
	cur := in.Current
	if cur == nil {
		return nil
	}
	name := in.RecipeName
	if name == "" {
		name = cur.RecipeID.String()
	}

	var out []models.HPPAlert
	if alert, ok := t.costChange(name, in.Previous, cur); ok {
		out = append(out, alert)
	}
	if alert, ok := t.marginLow(name, in.Previous, cur); ok {
		out = append(out, alert)
	}
	if alert, ok := t.costSpike(name, in.Previous, cur); ok {
		out = append(out, alert)
	}
	return out
}

func (t Thresholds) costChange(name string, prev, cur *models.HPPSnapshot) (models.HPPAlert, bool) {
	if prev == nil || !prev.HPPValue.IsPositive() {
		return models.HPPAlert{}, false
	}
	change := cur.HPPValue.Sub(prev.HPPValue).Div(prev.HPPValue)
	if change.IsZero() {
		return models.HPPAlert{}, false
	}
	if change.IsNegative() && !change.LessThan(t.Decrease.Neg()) {
		return models.HPPAlert{}, false
	}

	alert := newAlert(cur)
	alert.OldValue = prev.HPPValue
	alert.NewValue = cur.HPPValue
	alert.ChangePercentage = change.Mul(hundred).Round(percentScale)
	alert.AffectedComponents = t.affectedComponents(prev, cur)
	if change.IsPositive() {
		alert.AlertType = enums.HPPAlertIncrease
		alert.Severity = t.ChangeSeverity(change)
		alert.Title = fmt.Sprintf("Cost of %s increased %s%%", name, alert.ChangePercentage.StringFixed(2))
	} else {
		alert.AlertType = enums.HPPAlertDecrease
		alert.Severity = enums.AlertSeverityLow
		alert.Title = fmt.Sprintf("Cost of %s decreased %s%%", name, alert.ChangePercentage.Abs().StringFixed(2))
	}
	alert.Message = fmt.Sprintf("Cost per unit moved from %s to %s.", prev.HPPValue.StringFixed(2), cur.HPPValue.StringFixed(2))
	return alert, true
}

func (t Thresholds) marginLow(name string, prev, cur *models.HPPSnapshot) (models.HPPAlert, bool) {
	if cur.MarginPercentage == nil {
		return models.HPPAlert{}, false
	}
	severity, ok := t.MarginSeverity(cur.MarginPercentage.Div(hundred))
	if !ok {
		return models.HPPAlert{}, false
	}

	old := *cur.MarginPercentage
	if prev != nil && prev.MarginPercentage != nil {
		old = *prev.MarginPercentage
	}
	alert := newAlert(cur)
	alert.AlertType = enums.HPPAlertMarginLow
	alert.Severity = severity
	alert.OldValue = old
	alert.NewValue = *cur.MarginPercentage
	alert.ChangePercentage = cur.MarginPercentage.Sub(old).Round(percentScale)
	alert.Title = fmt.Sprintf("Margin of %s is %s%%", name, cur.MarginPercentage.StringFixed(2))
	alert.Message = fmt.Sprintf("Selling price leaves a %s%% margin over a cost per unit of %s.", cur.MarginPercentage.StringFixed(2), cur.HPPValue.StringFixed(2))
	return alert, true
}

func (t Thresholds) costSpike(name string, prev, cur *models.HPPSnapshot) (models.HPPAlert, bool) {
	if prev == nil {
		return models.HPPAlert{}, false
	}

	var (
		spikes  types.AffectedComponents
		largest decimal.Decimal
		oldCost decimal.Decimal
		newCost decimal.Decimal
	)
	for _, line := range cur.CostBreakdown.Ingredients {
		before, ok := prev.CostBreakdown.Ingredient(line.IngredientID)
		if !ok || !before.UnitCost.IsPositive() || line.Missing {
			continue
		}
		rise := line.UnitCost.Sub(before.UnitCost).Div(before.UnitCost)
		if !rise.GreaterThan(t.CostSpike) {
			continue
		}
		spikes = append(spikes, types.ComponentChange{
			Kind:             types.ComponentIngredient,
			Ref:              line.IngredientID.String(),
			Name:             line.Name,
			OldValue:         before.UnitCost,
			NewValue:         line.UnitCost,
			ChangePercentage: rise.Mul(hundred).Round(percentScale),
		})
		if rise.GreaterThan(largest) {
			largest, oldCost, newCost = rise, before.UnitCost, line.UnitCost
		}
	}
	if len(spikes) == 0 {
		return models.HPPAlert{}, false
	}
	sortByChange(spikes)

	alert := newAlert(cur)
	alert.AlertType = enums.HPPAlertCostSpike
	alert.Severity = enums.AlertSeverityMedium
	if largest.GreaterThan(t.CostSpike.Mul(decimal.NewFromInt(2))) {
		alert.Severity = enums.AlertSeverityHigh
	}
	alert.OldValue = oldCost
	alert.NewValue = newCost
	alert.ChangePercentage = largest.Mul(hundred).Round(percentScale)
	alert.AffectedComponents = spikes
	alert.Title = fmt.Sprintf("Ingredient cost spike in %s", name)
	alert.Message = fmt.Sprintf("%d ingredient(s) rose more than %s%%; largest rise %s%% (%s).",
		len(spikes), t.CostSpike.Mul(hundred).StringFixed(0), alert.ChangePercentage.StringFixed(2), spikes[0].Name)
	return alert, true
}

func (t Thresholds) affectedComponents(prev, cur *models.HPPSnapshot) types.AffectedComponents {
	var out types.AffectedComponents
	add := func(kind, ref, name string, before, after decimal.Decimal) {
		if !before.IsPositive() {
			return
		}
		change := after.Sub(before).Div(before)
		if !change.Abs().GreaterThan(t.ComponentChange) {
			return
		}
		out = append(out, types.ComponentChange{
			Kind:             kind,
			Ref:              ref,
			Name:             name,
			OldValue:         before,
			NewValue:         after,
			ChangePercentage: change.Mul(hundred).Round(percentScale),
		})
	}

	for _, line := range cur.CostBreakdown.Ingredients {
		if before, ok := prev.CostBreakdown.Ingredient(line.IngredientID); ok {
			add(types.ComponentIngredient, line.IngredientID.String(), line.Name, before.Cost, line.Cost)
		}
	}
	add(types.ComponentLabor, "", "labor", prev.LaborCost, cur.LaborCost)
	add(types.ComponentOverhead, "", "overhead", prev.OperationalCost, cur.OperationalCost)
	sortByChange(out)
	return out
}

func sortByChange(list types.AffectedComponents) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ChangePercentage.Abs().GreaterThan(list[j].ChangePercentage.Abs())
	})
}

func newAlert(cur *models.HPPSnapshot) models.HPPAlert {
	alert := models.HPPAlert{RecipeID: cur.RecipeID}
	if cur.ID != uuid.Nil {
		id := cur.ID
		alert.SnapshotID = &id
	}
	return alert
}
