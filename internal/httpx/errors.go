package httpx

import (
	"errors"
	"net/http"

	"ordercart/internal/cart"
	"ordercart/internal/clients"
	"ordercart/internal/orders"
)

// writeErr maps the domain error taxonomy onto HTTP status codes; anything
// unrecognized is a 500 with a generic body.
func writeErr(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, cart.ErrInvalidOwner),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, orders.ErrInvalidRequest),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrCartEmpty):
		code = http.StatusBadRequest
	case errors.Is(err, cart.ErrCartItemNotFound),
		errors.Is(err, clients.ErrProductNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		code = http.StatusNotFound
	case errors.Is(err, orders.ErrInsufficientStock):
		code = http.StatusConflict
	case errors.Is(err, orders.ErrUserValidation):
		code = http.StatusUnauthorized
	case errors.Is(err, orders.ErrPaymentProcessing),
		errors.Is(err, clients.ErrUnavailable):
		code = http.StatusBadGateway
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
