package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/upstream"
)

// OrdersReader is the slice of the upstream client the orders handler
// needs.
type OrdersReader interface {
	OrdersByUser(ctx context.Context, creds upstream.Credentials) ([]upstream.Order, error)
}

type OrdersHandler struct {
	orders  OrdersReader
	timeout time.Duration
}

func NewOrdersHandler(orders OrdersReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type OrderResponseDTO struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
	Total          string `json:"total"`
	Status         string `json:"status"`
	OrderDate      string `json:"order_date"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	orders, err := h.orders.OrdersByUser(ctx, creds)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}

	respondJSON(w, http.StatusOK, dtos)
}

func convertOrder(o upstream.Order) OrderResponseDTO {
	unit := pricing.FromDollars(o.Product.Price)
	total := pricing.LineTotal(unit, o.Quantity)
	return OrderResponseDTO{
		ID:             o.ID,
		ProductID:      o.Product.ID,
		ProductName:    o.Product.Name,
		Quantity:       o.Quantity,
		UnitPriceCents: int64(unit),
		TotalCents:     int64(total),
		Total:          pricing.Format(total),
		Status:         o.Status,
		OrderDate:      o.OrderDate,
	}
}
