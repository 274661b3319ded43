package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/pricing"
)

type ProductHandler struct {
	catalog *catalog.Service
	timeout time.Duration
}

func NewProductHandler(catalog *catalog.Service, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type ProductResponseDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	UnitPrice      string `json:"unit_price"`
	Category       string `json:"category,omitempty"`
	Image          string `json:"image,omitempty"`
}

type ProductsResponseDTO struct {
	Products []ProductResponseDTO `json:"products"`
}

func convertProduct(p catalog.Product) ProductResponseDTO {
	return ProductResponseDTO{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		UnitPriceCents: int64(p.UnitPrice),
		UnitPrice:      pricing.Format(p.UnitPrice),
		Category:       p.Category,
		Image:          p.ImageRef,
	}
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Products(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	dtos := make([]ProductResponseDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, convertProduct(p))
	}

	respondJSON(w, http.StatusOK, ProductsResponseDTO{Products: dtos})
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, err := parseProductID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertProduct(*product))
}
