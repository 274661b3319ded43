package catalog

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mu       sync.Mutex
	products map[int64]*Product
	err      error
	sets     int
}

func newMockCache() *mockCache {
	return &mockCache{products: map[int64]*Product{}}
}

func (m *mockCache) Get(_ context.Context, productID int64) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return p, nil
}

func (m *mockCache) Set(_ context.Context, product *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	m.sets++
	return nil
}

type mockProductAPI struct {
	mu       sync.Mutex
	fetches  int
	err      error
	products map[int64]upstream.Product
}

func (m *mockProductAPI) Product(_ context.Context, id int64) (upstream.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.err != nil {
		return upstream.Product{}, m.err
	}
	return m.products[id], nil
}

func (m *mockProductAPI) Products(context.Context) ([]upstream.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]upstream.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func TestGetProduct_CacheHitSkipsUpstream(t *testing.T) {
	cache := newMockCache()
	cache.products[1] = &Product{ID: 1, Name: "cached", UnitPrice: 100}
	api := &mockProductAPI{}

	s := NewService(api, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := s.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)
	assert.Equal(t, 0, api.fetches)
}

func TestGetProduct_MissFetchesAndConvertsPrice(t *testing.T) {
	cache := newMockCache()
	api := &mockProductAPI{products: map[int64]upstream.Product{
		2: {ID: 2, Name: "Widget", Price: 19.99, Category: "tools"},
	}}

	s := NewService(api, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := s.GetProduct(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, pricing.Cents(1999), got.UnitPrice)
	assert.Equal(t, 1, api.fetches)

	// cache fill is asynchronous
	require.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return cache.sets == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGetProduct_UpstreamError(t *testing.T) {
	cache := newMockCache()
	api := &mockProductAPI{err: &upstream.NetworkError{Err: context.DeadlineExceeded}}

	s := NewService(api, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := s.GetProduct(context.Background(), 3)

	var netErr *upstream.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestProducts_List(t *testing.T) {
	api := &mockProductAPI{products: map[int64]upstream.Product{
		1: {ID: 1, Name: "A", Price: 1.00},
		2: {ID: 2, Name: "B", Price: 2.50},
	}}

	s := NewService(api, newMockCache(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := s.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
