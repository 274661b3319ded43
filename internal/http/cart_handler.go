package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/session"
)

type CartHandler struct {
	sessions *session.Manager
	catalog  *catalog.Service
	timeout  time.Duration
}

func NewCartHandler(sessions *session.Manager, catalog *catalog.Service, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemDTO struct {
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	UnitPrice      string `json:"unit_price"`
	LineTotalCents int64  `json:"line_total_cents"`
	Image          string `json:"image,omitempty"`
	SyncState      string `json:"sync_state"`
}

type CartResponseDTO struct {
	Items      []CartItemDTO `json:"items"`
	TotalCents int64         `json:"total_cents"`
	Total      string        `json:"total"`
}

func cartView(store *cart.Store) CartResponseDTO {
	lines := store.Lines()
	items := make([]CartItemDTO, 0, len(lines))
	for _, l := range lines {
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
	total := store.Total()
	return CartResponseDTO{Items: items, TotalCents: int64(total), Total: pricing.Format(total)}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	sess := h.sessions.Get(creds)
	respondJSON(w, http.StatusOK, cartView(sess.Store))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	// resolve display data before touching the cart so a bad product id
	// never creates a local line
	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	sess := h.sessions.Get(creds)
	ev, err := sess.Store.Add(cart.Line{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		Quantity:  req.Quantity,
		ImageRef:  product.ImageRef,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := sess.Syncer.Wait(ctx, ev); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cartView(sess.Store))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// quantity 0 removes the line
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	sess := h.sessions.Get(creds)
	ev, err := sess.Store.SetQuantity(productID, req.Quantity)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := sess.Syncer.Wait(ctx, ev); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartView(sess.Store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	productID, err := parseProductID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	sess := h.sessions.Get(creds)
	ev, removed := sess.Store.Remove(productID)
	if !removed {
		// removing an absent line is a no-op
		respondJSON(w, http.StatusOK, cartView(sess.Store))
		return
	}

	if err := sess.Syncer.Wait(ctx, ev); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartView(sess.Store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	creds, ok := getCredsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	sess := h.sessions.Get(creds)
	if err := sess.Syncer.Clear(ctx); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartView(sess.Store))
}

func parseProductID(r *http.Request) (int64, error) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		return 0, strconv.ErrSyntax
	}
	return productID, nil
}
