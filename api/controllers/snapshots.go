package controllers

import (
	"net/http"

	"github.com/umkmkit/hpp-backend/api/responses"
	"github.com/umkmkit/hpp-backend/api/validators"
	"github.com/umkmkit/hpp-backend/internal/snapshots"
	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
)

// ListSnapshots returns a recipe's snapshots in the optional from/to range,
// oldest first.
func ListSnapshots(svc snapshots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "snapshot service unavailable"))
			return
		}
		recipeID, err := validators.ParseURLUUID(r, "recipeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rng, err := parseRange(r, "from", "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snaps, err := svc.List(r.Context(), recipeID, rng)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSnapshotDTOs(snaps))
	}
}

// CompareTrend compares average cost per serving between period A and B.
func CompareTrend(svc snapshots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "snapshot service unavailable"))
			return
		}
		recipeID, err := validators.ParseURLUUID(r, "recipeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		a, err := parseRange(r, "a_from", "a_to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		b, err := parseRange(r, "b_from", "b_to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cmp, err := svc.Compare(r.Context(), recipeID, a, b)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cmp)
	}
}

func parseRange(r *http.Request, fromKey, toKey string) (snapshots.Range, error) {
	from, err := validators.ParseQueryTime(r, fromKey, false)
	if err != nil {
		return snapshots.Range{}, err
	}
	to, err := validators.ParseQueryTime(r, toKey, true)
	if err != nil {
		return snapshots.Range{}, err
	}
	return snapshots.Range{From: from, To: to}, nil
}
