package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/fjod/go_storefront/internal/upstream"
)

type stubCartAPI struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (s *stubCartAPI) record(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, key)
	return s.errs[key]
}

func (s *stubCartAPI) AddCartLine(_ context.Context, _ upstream.Credentials, productID int64, quantity int) error {
	return s.record(fmt.Sprintf("add:%d:%d", productID, quantity))
}

func (s *stubCartAPI) UpdateCartQuantity(_ context.Context, _ upstream.Credentials, productID int64, quantity int) error {
	return s.record(fmt.Sprintf("set:%d:%d", productID, quantity))
}

func (s *stubCartAPI) RemoveCartLine(_ context.Context, _ upstream.Credentials, productID int64) error {
	return s.record(fmt.Sprintf("remove:%d", productID))
}

func (s *stubCartAPI) ClearCart(_ context.Context, _ upstream.Credentials) error {
	return s.record("clear")
}

type stubOrdersAPI struct {
	mu         sync.Mutex
	nextID     int64
	failOnCall int // 1-based, 0 means never
	failWith   error
	cleared    bool
}

func (s *stubOrdersAPI) CreateOrder(_ context.Context, _ upstream.Credentials, req upstream.OrderRequest) (upstream.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if s.failOnCall > 0 && s.nextID == int64(s.failOnCall) {
		return upstream.Order{}, s.failWith
	}
	return upstream.Order{ID: s.nextID, Quantity: req.Quantity}, nil
}

func (s *stubOrdersAPI) ClearCart(_ context.Context, _ upstream.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = true
	return nil
}

type stubProductAPI struct {
	products map[int64]upstream.Product
}

func (s *stubProductAPI) Product(_ context.Context, id int64) (upstream.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return upstream.Product{}, &upstream.RemoteRejection{Status: http.StatusNotFound, Message: "product not found"}
	}
	return p, nil
}

func (s *stubProductAPI) Products(_ context.Context) ([]upstream.Product, error) {
	out := make([]upstream.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

// missCache never holds anything, every lookup goes upstream.
type missCache struct{}

func (missCache) Get(context.Context, int64) (*catalog.Product, error) {
	return nil, catalog.ErrCacheMiss
}
func (missCache) Set(context.Context, *catalog.Product) error { return nil }

type env struct {
	router   *chi.Mux
	cartAPI  *stubCartAPI
	orders   *stubOrdersAPI
	sessions *session.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cartAPI := &stubCartAPI{errs: map[string]error{}}
	orders := &stubOrdersAPI{}
	submitter := checkout.NewSubmitter(orders, nil, log)
	sessions := session.NewManager(cartAPI, submitter, time.Hour, log)

	products := &stubProductAPI{products: map[int64]upstream.Product{
		1: {ID: 1, Name: "mug", Price: 12.50, ImageRef: "mug.png"},
		2: {ID: 2, Name: "shirt", Price: 30.00},
	}}
	cat := catalog.NewService(products, missCache{}, log)

	cartHandler := NewCartHandler(sessions, cat, 5*time.Second)
	checkoutHandler := NewCheckoutHandler(sessions, 5*time.Second)

	r := chi.NewRouter()
	r.Use(AuthMiddleware)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetState)
			r.Put("/shipping", checkoutHandler.SetShipping)
			r.Put("/payment", checkoutHandler.SetPayment)
			r.Post("/next", checkoutHandler.Next)
			r.Post("/back", checkoutHandler.Back)
			r.Post("/order", checkoutHandler.PlaceOrder)
		})
	})

	return &env{router: r, cartAPI: cartAPI, orders: orders, sessions: sessions}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer test-token")
	req.Header.Set("X-User-ID", "1")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) CartResponseDTO {
	t.Helper()
	var out CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestAddItem_ResolvesProductAndSyncs(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)

	out := decodeCart(t, rec)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "mug", out.Items[0].Name)
	assert.Equal(t, int64(1250), out.Items[0].UnitPriceCents)
	assert.Equal(t, int64(2500), out.TotalCents)
	assert.Equal(t, "$25.00", out.Total)
	assert.Contains(t, e.cartAPI.calls, "add:1:2")
}

func TestAddItem_UnknownProduct(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 77, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	// nothing was added locally
	assert.Empty(t, decodeCart(t, e.do(t, http.MethodGet, "/api/v1/cart", nil)).Items)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItem_SyncFailureDropsLine(t *testing.T) {
	e := newEnv(t)
	e.cartAPI.errs["add:1:1"] = &upstream.RemoteRejection{Status: http.StatusConflict, Message: "out of stock"}

	rec := e.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "upstream_rejected", errResp.Code)
	assert.Equal(t, "out of stock", errResp.Error)

	// the line never had a confirmed value, so the rollback removed it
	out := decodeCart(t, e.do(t, http.MethodGet, "/api/v1/cart", nil))
	assert.Empty(t, out.Items)
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2}).Code)

	rec := e.do(t, http.MethodPut, "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
	assert.Contains(t, e.cartAPI.calls, "remove:1")
}

func TestUpdateQuantity_AbsentLine(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPut, "/api/v1/cart/items/9", UpdateQuantityRequestDTO{Quantity: 3})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveItem_AbsentIsNoOp(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodDelete, "/api/v1/cart/items/9", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, e.cartAPI.calls, "remove:9")
}

func TestClearCart_RemoteFirst(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1}).Code)

	rec := e.do(t, http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Items)
	assert.Contains(t, e.cartAPI.calls, "clear")
}

func TestGetCart_MissingAuth(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
