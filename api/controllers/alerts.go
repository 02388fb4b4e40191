package controllers

import (
	"net/http"
	"strings"

	"github.com/umkmkit/hpp-backend/api/responses"
	"github.com/umkmkit/hpp-backend/api/validators"
	"github.com/umkmkit/hpp-backend/internal/alerts"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

// ListAlerts returns alerts newest first with cursor pagination.
func ListAlerts(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}

		recipeID, err := validators.ParseQueryUUID(r, "recipe_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unacknowledged, err := validators.ParseQueryBool(r, "unacknowledged", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.List(r.Context(), alerts.ListParams{
			RecipeID:           recipeID,
			UnacknowledgedOnly: unacknowledged,
			Limit:              limit,
			Cursor:             strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCursorPage(w, toAlertDTOs(resp.Items), resp.Cursor)
	}
}

type acknowledgeAlertRequest struct {
	Read    *bool `json:"read"`
	Dismiss *bool `json:"dismiss"`
}

// AcknowledgeAlert marks an alert read and optionally dismissed. An empty body
// marks it read.
func AcknowledgeAlert(svc alerts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "alerts service unavailable"))
			return
		}
		alertID, err := validators.ParseURLUUID(r, "alertID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req acknowledgeAlertRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		input := alerts.AcknowledgeInput{Read: true}
		if req.Read != nil {
			input.Read = *req.Read
		}
		if req.Dismiss != nil {
			input.Dismiss = *req.Dismiss
		}

		alert, err := svc.Acknowledge(r.Context(), alertID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAlertDTO(*alert))
	}
}
