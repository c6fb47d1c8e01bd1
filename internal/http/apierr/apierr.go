// Package apierr maps domain errors to HTTP status codes.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/alias"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reconcile"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
	"github.com/MrJamesThe3rd/karat/internal/shop"
)

// Status returns the response code for err.
func Status(err error) int {
	switch {
	case errors.Is(err, settlement.ErrInsufficient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrContention), errors.Is(err, reserve.ErrVersionConflict):
		return http.StatusServiceUnavailable
	case errors.Is(err, settlement.ErrIntegrityViolation),
		errors.Is(err, settlement.ErrAlreadySettled),
		errors.Is(err, settlement.ErrAlreadyReversed),
		errors.Is(err, settlement.ErrReserveChanged),
		errors.Is(err, shop.ErrExists):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrInvalidTransaction),
		errors.Is(err, shop.ErrInvalid),
		errors.Is(err, reconcile.ErrInvalidRequest),
		errors.Is(err, movement.ErrInvalidFilter),
		errors.Is(err, alias.ErrUnresolved):
		return http.StatusBadRequest
	case errors.Is(err, settlement.ErrNotFound),
		errors.Is(err, movement.ErrNotFound),
		errors.Is(err, alert.ErrNotFound),
		errors.Is(err, shop.ErrNotFound):
		return http.StatusNotFound
	}

	return http.StatusInternalServerError
}

// Write sends err as a plain-text response. Internal errors are logged and
// their details kept out of the body.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}
