package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/api/responses"
	"github.com/umkmkit/hpp-backend/api/validators"
	"github.com/umkmkit/hpp-backend/internal/wac"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

const maxNoteLength = 500

type recordStockTransactionRequest struct {
	// Quantity is signed: positive for purchases, negative for usage.
	Quantity  *decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	Note      *string          `json:"note" validate:"omitempty,max=500"`
}

// RecordStockTransaction appends a purchase or usage to an ingredient's ledger
// and returns the updated cost position.
func RecordStockTransaction(svc wac.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wac service unavailable"))
			return
		}
		ingredientID, err := validators.ParseURLUUID(r, "ingredientID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req recordStockTransactionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Note != nil {
			note := validators.SanitizeString(*req.Note, maxNoteLength)
			req.Note = &note
		}

		ingredient, err := svc.RecordTransaction(r.Context(), wac.RecordTransactionInput{
			IngredientID: ingredientID,
			Quantity:     *req.Quantity,
			UnitPrice:    req.UnitPrice,
			Note:         req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toIngredientDTO(ingredient))
	}
}

// ListStockTransactions returns the newest ledger rows for an ingredient.
func ListStockTransactions(svc wac.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wac service unavailable"))
			return
		}
		ingredientID, err := validators.ParseURLUUID(r, "ingredientID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txs, err := svc.History(r.Context(), ingredientID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStockTransactionDTOs(txs))
	}
}

// ReconcileIngredient replays the ledger and reports drift from the stored
// position.
func ReconcileIngredient(svc wac.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wac service unavailable"))
			return
		}
		ingredientID, err := validators.ParseURLUUID(r, "ingredientID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Reconcile(r.Context(), ingredientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
