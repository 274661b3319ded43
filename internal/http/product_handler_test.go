package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/upstream"
)

func newProductRouter() *chi.Mux {
	products := &stubProductAPI{products: map[int64]upstream.Product{
		1: {ID: 1, Name: "mug", Description: "a mug", Price: 12.50, Category: "kitchen", ImageRef: "mug.png"},
	}}
	cat := catalog.NewService(products, missCache{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	handler := NewProductHandler(cat, 5*time.Second)

	r := chi.NewRouter()
	r.Get("/api/v1/products", handler.List)
	r.Get("/api/v1/products/{product_id}", handler.Get)
	return r
}

func TestGetProduct_Success(t *testing.T) {
	r := newProductRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out ProductResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "mug", out.Name)
	assert.Equal(t, int64(1250), out.UnitPriceCents)
	assert.Equal(t, "$12.50", out.UnitPrice)
	assert.Equal(t, "mug.png", out.Image)
}

func TestGetProduct_NotFound(t *testing.T) {
	r := newProductRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProduct_BadID(t *testing.T) {
	r := newProductRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProducts(t *testing.T) {
	r := newProductRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out ProductsResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out.Products, 1)
	assert.Equal(t, int64(1), out.Products[0].ID)
}
