package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCreds() Credentials {
	return Credentials{Token: "tok-123", UserID: 7}
}

func TestAddCartLine_RequestShape(t *testing.T) {
	var got cartLineBody
	var gotAuth, gotUser string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/cart", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotUser = r.Header.Get("X-User-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())
	err := c.AddCartLine(context.Background(), testCreds(), 42, 3)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "7", gotUser)
	assert.Equal(t, int64(42), got.Product.ID)
	assert.Equal(t, int64(7), got.User.ID)
	assert.Equal(t, 3, got.Quantity)
	assert.Equal(t, "In Cart", got.Status)
	assert.NotEmpty(t, got.OrderDate)
}

func TestCreateOrder_RequestShape(t *testing.T) {
	var got orderBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Order{ID: 1001, Status: "PENDING", Quantity: got.Quantity})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())
	order, err := c.CreateOrder(context.Background(), testCreds(), OrderRequest{
		ProductID: 5,
		Quantity:  2,
		Shipping: ShippingDetails{
			FirstName:     "Ada",
			LastName:      "Lovelace",
			Address:       "1 Main St",
			City:          "London",
			State:         "LDN",
			ZipCode:       "E1",
			Country:       "UK",
			PaymentMethod: "CARD",
			CardLastFour:  "4242",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1001), order.ID)
	assert.Equal(t, "PENDING", got.Status)
	assert.Equal(t, "CARD", got.ShippingDetails.PaymentMethod)
	assert.Equal(t, "4242", got.ShippingDetails.CardLastFour)
	assert.Equal(t, int64(5), got.Product.ID)
}

func TestDo_MissingCredentials(t *testing.T) {
	c := NewClient("http://localhost:1", time.Second, testLogger())
	err := c.AddCartLine(context.Background(), Credentials{}, 1, 1)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestDo_RemoteRejectionWithMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "insufficient stock"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())
	err := c.UpdateCartQuantity(context.Background(), testCreds(), 1, 50)

	var rej *RemoteRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusConflict, rej.Status)
	assert.Equal(t, "insufficient stock", rej.Message)
}

func TestDo_RemoteRejectionPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Error adding item to cart: boom"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())
	err := c.AddCartLine(context.Background(), testCreds(), 1, 1)

	var rej *RemoteRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Error adding item to cart: boom", rej.Message)
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	c := NewClient(srv.URL, time.Second, testLogger())
	err := c.RemoveCartLine(context.Background(), testCreds(), 1)

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestDo_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	for i := 0; i < 10; i++ {
		err := c.RemoveCartLine(context.Background(), testCreds(), 1)
		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
	}
	// after enough consecutive failures the breaker rejects without dialing
	err := c.RemoveCartLine(context.Background(), testCreds(), 1)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestProducts_Unauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		require.Equal(t, "/api/products", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Product{{ID: 1, Name: "Widget", Price: 19.99}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, testLogger())
	products, err := c.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
}
