package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/pkg/db/models"
	"github.com/umkmkit/hpp-backend/pkg/enums"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

type ingredientDTO struct {
	ID                  uuid.UUID        `json:"id"`
	Name                string           `json:"name"`
	Unit                string           `json:"unit"`
	CurrentStock        decimal.Decimal  `json:"current_stock"`
	WeightedAverageCost *decimal.Decimal `json:"weighted_average_cost"`
	PricePerUnit        decimal.Decimal  `json:"price_per_unit"`
	Version             int64            `json:"version"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func toIngredientDTO(i *models.Ingredient) ingredientDTO {
	return ingredientDTO{
		ID:                  i.ID,
		Name:                i.Name,
		Unit:                i.Unit,
		CurrentStock:        i.CurrentStock,
		WeightedAverageCost: i.WeightedAverageCost,
		PricePerUnit:        i.PricePerUnit,
		Version:             i.Version,
		UpdatedAt:           i.UpdatedAt,
	}
}

type stockTransactionDTO struct {
	ID              uuid.UUID                  `json:"id"`
	IngredientID    uuid.UUID                  `json:"ingredient_id"`
	TransactionType enums.StockTransactionType `json:"transaction_type"`
	Quantity        decimal.Decimal            `json:"quantity"`
	UnitPrice       *decimal.Decimal           `json:"unit_price"`
	StockBefore     decimal.Decimal            `json:"stock_before"`
	StockAfter      decimal.Decimal            `json:"stock_after"`
	WACBefore       *decimal.Decimal           `json:"wac_before"`
	WACAfter        *decimal.Decimal           `json:"wac_after"`
	Note            *string                    `json:"note,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
}

func toStockTransactionDTOs(txs []models.StockTransaction) []stockTransactionDTO {
	out := make([]stockTransactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, stockTransactionDTO{
			ID:              t.ID,
			IngredientID:    t.IngredientID,
			TransactionType: t.TransactionType,
			Quantity:        t.Quantity,
			UnitPrice:       t.UnitPrice,
			StockBefore:     t.StockBefore,
			StockAfter:      t.StockAfter,
			WACBefore:       t.WACBefore,
			WACAfter:        t.WACAfter,
			Note:            t.Note,
			CreatedAt:       t.CreatedAt,
		})
	}
	return out
}

type snapshotDTO struct {
	ID               uuid.UUID           `json:"id"`
	RecipeID         uuid.UUID           `json:"recipe_id"`
	SnapshotDate     time.Time           `json:"snapshot_date"`
	HPPValue         decimal.Decimal     `json:"hpp_value"`
	MaterialCost     decimal.Decimal     `json:"material_cost"`
	LaborCost        decimal.Decimal     `json:"labor_cost"`
	OperationalCost  decimal.Decimal     `json:"operational_cost"`
	TotalCost        decimal.Decimal     `json:"total_cost"`
	Servings         int                 `json:"servings"`
	CostBreakdown    types.CostBreakdown `json:"cost_breakdown"`
	SellingPrice     *decimal.Decimal    `json:"selling_price"`
	MarginPercentage *decimal.Decimal    `json:"margin_percentage"`
}

func toSnapshotDTOs(snaps []models.HPPSnapshot) []snapshotDTO {
	out := make([]snapshotDTO, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, snapshotDTO{
			ID:               s.ID,
			RecipeID:         s.RecipeID,
			SnapshotDate:     s.SnapshotDate,
			HPPValue:         s.HPPValue,
			MaterialCost:     s.MaterialCost,
			LaborCost:        s.LaborCost,
			OperationalCost:  s.OperationalCost,
			TotalCost:        s.TotalCost,
			Servings:         s.Servings,
			CostBreakdown:    s.CostBreakdown,
			SellingPrice:     s.SellingPrice,
			MarginPercentage: s.MarginPercentage,
		})
	}
	return out
}

type alertDTO struct {
	ID                 uuid.UUID                `json:"id"`
	RecipeID           uuid.UUID                `json:"recipe_id"`
	SnapshotID         *uuid.UUID               `json:"snapshot_id"`
	AlertType          enums.HPPAlertType       `json:"alert_type"`
	Severity           enums.AlertSeverity      `json:"severity"`
	Title              string                   `json:"title"`
	Message            string                   `json:"message"`
	OldValue           decimal.Decimal          `json:"old_value"`
	NewValue           decimal.Decimal          `json:"new_value"`
	ChangePercentage   decimal.Decimal          `json:"change_percentage"`
	AffectedComponents types.AffectedComponents `json:"affected_components"`
	IsRead             bool                     `json:"is_read"`
	IsDismissed        bool                     `json:"is_dismissed"`
	ReadAt             *time.Time               `json:"read_at"`
	DismissedAt        *time.Time               `json:"dismissed_at"`
	CreatedAt          time.Time                `json:"created_at"`
}

func toAlertDTO(a models.HPPAlert) alertDTO {
	return alertDTO{
		ID:                 a.ID,
		RecipeID:           a.RecipeID,
		SnapshotID:         a.SnapshotID,
		AlertType:          a.AlertType,
		Severity:           a.Severity,
		Title:              a.Title,
		Message:            a.Message,
		OldValue:           a.OldValue,
		NewValue:           a.NewValue,
		ChangePercentage:   a.ChangePercentage,
		AffectedComponents: a.AffectedComponents,
		IsRead:             a.IsRead,
		IsDismissed:        a.IsDismissed,
		ReadAt:             a.ReadAt,
		DismissedAt:        a.DismissedAt,
		CreatedAt:          a.CreatedAt,
	}
}

func toAlertDTOs(alerts []models.HPPAlert) []alertDTO {
	out := make([]alertDTO, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertDTO(a))
	}
	return out
}
