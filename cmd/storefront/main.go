package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/catalog/cache"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/events"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/session"
	"github.com/fjod/go_storefront/internal/upstream"
	"github.com/fjod/go_storefront/pkg/logging"
)

type Config struct {
	HTTPPort        string
	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	RedisAddr       string
	RedisPassword   string
	EventBrokers    string
	SessionIdleTTL  time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:9090"),
		UpstreamTimeout: 15 * time.Second,
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		EventBrokers:    getEnv("EVENT_BROKERS", ""),
		SessionIdleTTL:  30 * time.Minute,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	log := logging.New("storefront")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}
	cancelPing()
	defer redisClient.Close()

	var brokers []string
	if cfg.EventBrokers != "" {
		brokers = strings.Split(cfg.EventBrokers, ",")
	}
	publisher := events.NewPublisher(log, brokers...)
	defer publisher.Close()

	upstreamClient := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, log)
	catalogService := catalog.NewService(upstreamClient, cache.NewRedisCache(redisClient), log)
	submitter := checkout.NewSubmitter(upstreamClient, publisher, log)
	sessions := session.NewManager(upstreamClient, submitter, cfg.SessionIdleTTL, log)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Run(sweepCtx)

	cartHandler := h.NewCartHandler(sessions, catalogService, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(sessions, cfg.RequestTimeout)
	ordersHandler := h.NewOrdersHandler(upstreamClient, cfg.RequestTimeout)
	productHandler := h.NewProductHandler(catalogService, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", productHandler.List)
		r.Get("/products/{product_id}", productHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

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

			r.Get("/orders", ordersHandler.ListOrders)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", "port", cfg.HTTPPort, "upstream", cfg.UpstreamBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}
