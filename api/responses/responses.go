package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/types"
)

const retryAfterSeconds = "5"

// codes whose message is written for the caller and safe to return verbatim
var callerFacing = map[pkgerrors.Code]bool{
	pkgerrors.CodeValidation:    true,
	pkgerrors.CodeNotFound:      true,
	pkgerrors.CodeConflict:      true,
	pkgerrors.CodeStateConflict: true,
	pkgerrors.CodeIdempotency:   true,
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteCursorPage writes a list page and the cursor of the next one.
func WriteCursorPage(w http.ResponseWriter, items any, cursor string) {
	writeJSON(w, http.StatusOK, types.CursorEnvelope{Data: items, Cursor: cursor})
}

// WriteError renders err as the error envelope. Untyped errors become
// internal errors and never leak their text; 5xx responses are logged with
// the full chain, the rest as warnings.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	status, apiErr := describe(ctx, logg, w, err)
	writeJSON(w, status, types.ErrorEnvelope{Error: apiErr})
}

// WritePartial renders data next to err for operations that produced a
// result but could not finish, such as a calculation whose snapshot failed to
// save. The status is the error's, so callers and retry layers still see the
// failure.
func WritePartial(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, data any, err error) {
	status, apiErr := describe(ctx, logg, w, err)
	writeJSON(w, status, types.PartialEnvelope{Data: data, Error: apiErr})
}

func describe(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) (int, types.APIError) {
	if err == nil {
		err = errors.New("nil error passed to WriteError")
	}
	typed := pkgerrors.Classify(err)
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		RequestID: chimw.GetReqID(ctx),
		Retryable: meta.Retryable,
	}
	if callerFacing[typed.Code()] && typed.Message() != "" {
		apiErr.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}
	if meta.Retryable && meta.HTTPStatus == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}
	return meta.HTTPStatus, apiErr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zlog.Error().Err(err).Int("status", status).Msg("encode response")
	}
}
