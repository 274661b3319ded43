package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/cartsync"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/upstream"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError converts errors from the cart, checkout and upstream
// layers into HTTP status codes.
func handleDomainError(w http.ResponseWriter, err error) {
	var rejection *upstream.RemoteRejection
	var netErr *upstream.NetworkError
	var validation *checkout.ValidationError

	switch {
	case errors.Is(err, upstream.ErrAuthRequired):
		respondError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, "validation_failed", validation.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, cartsync.ErrMutationDropped):
		respondError(w, http.StatusConflict, "mutation_dropped", err.Error())
	case errors.As(err, &rejection):
		respondError(w, rejection.Status, "upstream_rejected", rejection.Message)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "upstream temporarily unavailable")
	case errors.As(err, &netErr):
		respondError(w, http.StatusBadGateway, "upstream_unreachable", "could not reach upstream service")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "cancelled", "request cancelled")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
