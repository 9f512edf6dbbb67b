package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/CaoNguyen-1883/HTTM-sub001/internal/cart"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/catalog"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/inventory"
	"github.com/CaoNguyen-1883/HTTM-sub001/internal/order"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognized is logged and reported as a 500 without leaking detail.
func writeServiceError(w http.ResponseWriter, logger *log.Logger, err error) {
	var short *inventory.InsufficientStockError
	var badMove *order.InvalidTransitionError
	var unavailable *order.ItemUnavailableError

	switch {
	case errors.As(err, &short):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": short.Error(),
			"short": short.Short,
		})
	case errors.As(err, &badMove):
		writeError(w, http.StatusConflict, badMove.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusConflict, unavailable.Error())
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrVariantUnavailable),
		errors.Is(err, order.ErrPaymentNotConfirmed),
		errors.Is(err, cart.ErrConcurrencyConflict),
		errors.Is(err, order.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
