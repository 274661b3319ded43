package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/session"
)

type CheckoutHandler struct {
	sessions *session.Manager
	timeout  time.Duration
}

func NewCheckoutHandler(sessions *session.Manager, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		timeout:  timeout,
	}
}

type CheckoutStateDTO struct {
	Step     string                    `json:"step"`
	Shipping *checkout.ShippingAddress `json:"shipping,omitempty"`
	Payment  *checkout.PaymentSummary  `json:"payment,omitempty"`
	Review   *ReviewDTO                `json:"review,omitempty"`
}

type ReviewDTO struct {
	Items      []CartItemDTO `json:"items"`
	TotalCents int64         `json:"total_cents"`
	Total      string        `json:"total"`
	CapturedAt string        `json:"captured_at"`
}

type PlaceOrderResponseDTO struct {
	SubmissionID string  `json:"submission_id"`
	OrderIDs     []int64 `json:"order_ids"`
	TotalCents   int64   `json:"total_cents"`
	Total        string  `json:"total"`
}

type PartialFailureResponseDTO struct {
	Error           string  `json:"error"`
	Code            string  `json:"code"`
	SubmissionID    string  `json:"submission_id"`
	CreatedOrderIDs []int64 `json:"created_order_ids"`
	FailedProductID int64   `json:"failed_product_id"`
}

func checkoutState(o *checkout.Orchestrator) CheckoutStateDTO {
	state := CheckoutStateDTO{Step: o.Step().String()}

	if shipping := o.Shipping(); shipping != (checkout.ShippingAddress{}) {
		state.Shipping = &shipping
	}
	if payment := o.Payment(); payment != (checkout.PaymentSummary{}) {
		state.Payment = &payment
	}
	if snap := o.Snapshot(); snap != nil {
		items := make([]CartItemDTO, 0, len(snap.Lines))
		for _, l := range snap.Lines {
			items = append(items, CartItemDTO{
				ProductID:      l.ProductID,
				Name:           l.Name,
				Quantity:       l.Quantity,
				UnitPriceCents: int64(l.UnitPrice),
				UnitPrice:      pricing.Format(l.UnitPrice),
				LineTotalCents: int64(l.Total()),
				Image:          l.ImageRef,
				SyncState:      string(l.State),
			})
		}
		state.Review = &ReviewDTO{
			Items:      items,
			TotalCents: int64(snap.Total),
			Total:      pricing.Format(snap.Total),
			CapturedAt: snap.CapturedAt.Format(time.RFC3339),
		}
	}
	return state
}

func (h *CheckoutHandler) GetState(w http.ResponseWriter, r *http.Request) {
	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	sess := h.sessions.Get(creds)
	respondJSON(w, http.StatusOK, checkoutState(sess.Checkout()))
}

func (h *CheckoutHandler) SetShipping(w http.ResponseWriter, r *http.Request) {
	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	var req checkout.ShippingAddress
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess := h.sessions.Get(creds)
	o := sess.Checkout()
	if err := o.SetShipping(req); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, checkoutState(o))
}

func (h *CheckoutHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	var req checkout.PaymentCard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess := h.sessions.Get(creds)
	o := sess.Checkout()
	if err := o.SetPayment(req); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, checkoutState(o))
}

func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	sess := h.sessions.Get(creds)
	o := sess.Checkout()
	if err := o.Next(); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, checkoutState(o))
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	sess := h.sessions.Get(creds)
	o := sess.Checkout()
	if err := o.Back(); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, checkoutState(o))
}

func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	sess := h.sessions.Get(creds)
	o := sess.Checkout()
	snap := o.Snapshot()

	res, err := o.PlaceOrder(ctx)
	if err != nil {
		var partial *checkout.PartialSubmissionError
		if errors.As(err, &partial) {
			// some orders exist upstream; the client must know which before
			// deciding whether to retry
			respondJSON(w, http.StatusBadGateway, PartialFailureResponseDTO{
				Error:           partial.Error(),
				Code:            "partial_submission",
				SubmissionID:    res.SubmissionID.String(),
				CreatedOrderIDs: partial.CreatedOrderIDs,
				FailedProductID: partial.FailedProductID,
			})
			return
		}
		handleDomainError(w, err)
		return
	}

	orderIDs := make([]int64, 0, len(res.Created))
	for _, created := range res.Created {
		orderIDs = append(orderIDs, created.OrderID)
	}
	var total pricing.Cents
	if snap != nil {
		total = snap.Total
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponseDTO{
		SubmissionID: res.SubmissionID.String(),
		OrderIDs:     orderIDs,
		TotalCents:   int64(total),
		Total:        pricing.Format(total),
	})
}
