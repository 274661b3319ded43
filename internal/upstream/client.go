// Package upstream is the REST client for the remote commerce service that
// owns durable cart and order state. Every authenticated call carries a
// bearer token and the user identity header; transport failures and
// 4xx/5xx answers are converted into the typed errors of this package so
// no raw transport error escapes to callers.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Credentials identify the acting user against the upstream service.
type Credentials struct {
	Token  string
	UserID int64
}

func (c Credentials) Valid() bool {
	return c.Token != "" && c.UserID > 0
}

type ref struct {
	ID int64 `json:"id"`
}

type cartLineBody struct {
	Product   ref    `json:"product"`
	User      ref    `json:"user"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	OrderDate string `json:"orderDate"`
}

type quantityBody struct {
	Quantity int `json:"quantity"`
}

// ShippingDetails is the order snapshot the upstream service stores per
// order: the address plus the non-sensitive payment projection.
type ShippingDetails struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zipCode"`
	Country       string `json:"country"`
	Phone         string `json:"phone,omitempty"`
	PaymentMethod string `json:"paymentMethod"`
	CardLastFour  string `json:"cardLastFour"`
}

type OrderRequest struct {
	ProductID int64
	Quantity  int
	Shipping  ShippingDetails
}

type orderBody struct {
	Product         ref             `json:"product"`
	User            ref             `json:"user"`
	Quantity        int             `json:"quantity"`
	Status          string          `json:"status"`
	OrderDate       string          `json:"orderDate"`
	ShippingDetails ShippingDetails `json:"shippingDetails"`
}

// Order is the durable record the upstream service returns. OrderDate stays
// a string: the server serializes timestamps without a zone offset.
type Order struct {
	ID        int64   `json:"id"`
	Product   Product `json:"product"`
	Quantity  int     `json:"quantity"`
	Status    string  `json:"status"`
	OrderDate string  `json:"orderDate"`
}

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	ImageRef    string  `json:"productImage"`
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*http.Response]
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "upstream-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:  cb,
		log: log,
	}
}

// AddCartLine creates a cart line remotely, or increments it when the
// product is already in the user's cart.
func (c *Client) AddCartLine(ctx context.Context, creds Credentials, productID int64, quantity int) error {
	body := cartLineBody{
		Product:   ref{ID: productID},
		User:      ref{ID: creds.UserID},
		Quantity:  quantity,
		Status:    "In Cart",
		OrderDate: time.Now().UTC().Format(time.RFC3339),
	}
	return c.do(ctx, &creds, http.MethodPost, "/api/cart", body, nil)
}

// UpdateCartQuantity sets an absolute quantity for a cart line.
func (c *Client) UpdateCartQuantity(ctx context.Context, creds Credentials, productID int64, quantity int) error {
	path := fmt.Sprintf("/api/cart/%d", productID)
	return c.do(ctx, &creds, http.MethodPut, path, quantityBody{Quantity: quantity}, nil)
}

// RemoveCartLine deletes a cart line.
func (c *Client) RemoveCartLine(ctx context.Context, creds Credentials, productID int64) error {
	path := fmt.Sprintf("/api/cart/%d", productID)
	return c.do(ctx, &creds, http.MethodDelete, path, nil, nil)
}

// ClearCart removes every cart line for the user.
func (c *Client) ClearCart(ctx context.Context, creds Credentials) error {
	path := fmt.Sprintf("/api/cart/clear/%d", creds.UserID)
	return c.do(ctx, &creds, http.MethodDelete, path, nil, nil)
}

// CreateOrder creates one durable order record for one cart line.
func (c *Client) CreateOrder(ctx context.Context, creds Credentials, req OrderRequest) (Order, error) {
	body := orderBody{
		Product:         ref{ID: req.ProductID},
		User:            ref{ID: creds.UserID},
		Quantity:        req.Quantity,
		Status:          "PENDING",
		OrderDate:       time.Now().UTC().Format(time.RFC3339),
		ShippingDetails: req.Shipping,
	}
	var out Order
	if err := c.do(ctx, &creds, http.MethodPost, "/api/orders", body, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}

// OrdersByUser returns the user's order history.
func (c *Client) OrdersByUser(ctx context.Context, creds Credentials) ([]Order, error) {
	path := fmt.Sprintf("/api/orders/user/%d", creds.UserID)
	var out []Order
	if err := c.do(ctx, &creds, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Product fetches a single product. Product reads are unauthenticated.
func (c *Client) Product(ctx context.Context, id int64) (Product, error) {
	var out Product
	if err := c.do(ctx, nil, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil, &out); err != nil {
		return Product{}, err
	}
	return out, nil
}

// Products fetches the full product list.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, nil, http.MethodGet, "/api/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, creds *Credentials, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if creds != nil {
		if !creds.Valid() {
			return ErrAuthRequired
		}
		req.Header.Set("Authorization", "Bearer "+creds.Token)
		req.Header.Set("X-User-ID", strconv.FormatInt(creds.UserID, 10))
	}

	resp, err := c.cb.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		rej := &RemoteRejection{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		c.log.Warn("upstream rejection", "method", method, "path", path, "status", rej.Status, "message", rej.Message)
		return rej
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// readErrorMessage extracts the server-provided failure text. The upstream
// service answers errors either as {"message": "..."} or as a plain string.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}

	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Error != "" {
			return obj.Error
		}
	}

	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		return plain
	}
	return strings.TrimSpace(string(data))
}
