// Package catalog serves product lookups for cart and checkout display,
// fronting the upstream product API with a cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/upstream"
)

// Product is the display projection of an upstream product, with the price
// already converted to minor units.
type Product struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	UnitPrice   pricing.Cents `json:"unit_price_cents"`
	Category    string        `json:"category"`
	ImageRef    string        `json:"image"`
}

var ErrCacheMiss = errors.New("cache miss")

// Cache is defined here, by the consumer; the redis implementation lives in
// the cache subpackage.
type Cache interface {
	Get(ctx context.Context, productID int64) (*Product, error)
	Set(ctx context.Context, product *Product) error
}

// ProductAPI is the slice of the upstream client the catalog needs.
type ProductAPI interface {
	Product(ctx context.Context, id int64) (upstream.Product, error)
	Products(ctx context.Context) ([]upstream.Product, error)
}

type Service struct {
	api   ProductAPI
	cache Cache
	sfg   singleflight.Group // prevents cache stampede
	log   *slog.Logger
}

func NewService(api ProductAPI, cache Cache, log *slog.Logger) *Service {
	return &Service{api: api, cache: cache, log: log}
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	// singleflight collapses concurrent misses for the same product
	v, err, _ := s.sfg.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("cache get error", "product_id", id, "error", err)
		}

		remote, err := s.api.Product(ctx, id)
		if err != nil {
			return nil, err
		}
		product := convert(remote)

		// populate the cache off the request path
		go func() {
			if errSet := s.cache.Set(context.Background(), product); errSet != nil {
				s.log.Warn("cache set error", "product_id", id, "error", errSet)
			}
		}()

		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

// Products lists the catalog straight from upstream. The list changes too
// often to be worth caching per entry.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	remote, err := s.api.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]Product, 0, len(remote))
	for _, p := range remote {
		out = append(out, *convert(p))
	}
	return out, nil
}

func convert(p upstream.Product) *Product {
	return &Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		UnitPrice:   pricing.FromDollars(p.Price),
		Category:    p.Category,
		ImageRef:    p.ImageRef,
	}
}
