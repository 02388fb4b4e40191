package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/umkmkit/hpp-backend/api/responses"
	"github.com/umkmkit/hpp-backend/api/validators"
	"github.com/umkmkit/hpp-backend/internal/hpp"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

type calculateHPPRequest struct {
	TargetMargin *decimal.Decimal `json:"target_margin" validate:"omitempty,gte=0,lt=1"`
	Persist      *bool            `json:"persist"`
}

type calculateHPPResponse struct {
	*hpp.Result
	Alerts []alertDTO `json:"alerts"`
}

// CalculateHPP prices one recipe. The body is optional; persist defaults to
// true. When the cost was computed but could not be saved, the result is
// returned with the retryable error and persisted=false.
func CalculateHPP(svc hpp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hpp service unavailable"))
			return
		}
		recipeID, err := validators.ParseURLUUID(r, "recipeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req calculateHPPRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		opts := hpp.Options{TargetMargin: req.TargetMargin, Persist: true}
		if req.Persist != nil {
			opts.Persist = *req.Persist
		}

		res, err := svc.Calculate(r.Context(), recipeID, opts)
		if err != nil && res != nil && pkgerrors.IsRetryable(err) {
			responses.WritePartial(r.Context(), logg, w, calculateHPPResponse{Result: res, Alerts: toAlertDTOs(res.Alerts)}, err)
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, calculateHPPResponse{Result: res, Alerts: toAlertDTOs(res.Alerts)})
	}
}

type recalculateRequest struct {
	RecipeIDs []uuid.UUID `json:"recipe_ids" validate:"max=1000"`
}

// RecalculateHPP snapshots the listed recipes, or every active recipe when the
// list is empty. Per-recipe failures are reported in the payload.
func RecalculateHPP(svc hpp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hpp service unavailable"))
			return
		}
		var req recalculateRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		res, err := svc.RecalculateAll(r.Context(), req.RecipeIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res)
	}
}
