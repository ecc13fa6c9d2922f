package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/metrics"
	"github.com/EduardooSodre/zarife-sub000/internal/payment"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
	"github.com/EduardooSodre/zarife-sub000/internal/service"
)

// Handler handles HTTP requests for the application.
type Handler struct {
	checkout   *service.CheckoutService
	payments   *service.PaymentService
	reconciler *service.ReconcileService
	orders     repository.OrderRepository
	products   repository.ProductRepository
	metrics    *metrics.Metrics
}

func NewHandler(
	checkout *service.CheckoutService,
	payments *service.PaymentService,
	reconciler *service.ReconcileService,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		checkout:   checkout,
		payments:   payments,
		reconciler: reconciler,
		orders:     orders,
		products:   products,
		metrics:    m,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.handleGetProducts)
	mux.HandleFunc("POST /api/orders", h.handleCreateOrder)
	mux.HandleFunc("GET /api/orders", h.handleGetOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.handleOpenPaymentSession)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.handleCancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.handleUpdateFulfillment)
	mux.HandleFunc("POST /api/webhooks/{provider}", h.handleWebhook)
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.FindAll(r.Context())
	if err != nil {
		slog.Error("Failed to get products", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

type createOrderRequest struct {
	Items    []entity.OrderItem      `json:"items"`
	Customer entity.CustomerSnapshot `json:"customer"`
	Shipping entity.AddressSnapshot  `json:"shipping"`
	Amounts  struct {
		Subtotal int64  `json:"subtotal"`
		Shipping int64  `json:"shipping"`
		Total    int64  `json:"total"`
		Currency string `json:"currency"`
	} `json:"amounts"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe("create_order", start)

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	order, err := h.checkout.CreateOrder(r.Context(), service.CreateOrderInput{
		Items:       req.Items,
		Customer:    req.Customer,
		Shipping:    req.Shipping,
		Subtotal:    req.Amounts.Subtotal,
		ShippingFee: req.Amounts.Shipping,
		Total:       req.Amounts.Total,
		Currency:    req.Amounts.Currency,
	})
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusUnprocessableEntity, ve.Reason, ve.Error())
			return
		}
		slog.Error("Failed to create order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create order")
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersCreated.Inc()
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"order_id": order.ID,
		"status":   string(order.Status),
	})
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.FindRecent(r.Context(), 50)
	if err != nil {
		slog.Error("Failed to get orders", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.FindByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get order", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type openSessionRequest struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
}

func (h *Handler) handleOpenPaymentSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe("open_payment_session", start)

	orderID := r.PathValue("id")

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	result, err := h.payments.OpenSession(r.Context(), orderID, req.Provider, req.Email)
	if err != nil {
		h.countSession(req.Provider, "error")
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "order not found")
		case errors.Is(err, service.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, "unknown_provider", err.Error())
		case errors.Is(err, service.ErrNotOrderOwner):
			writeError(w, http.StatusForbidden, "forbidden", "order does not belong to requester")
		case errors.Is(err, service.ErrOrderNotPending):
			writeError(w, http.StatusConflict, "not_pending", err.Error())
		case errors.Is(err, service.ErrAmountMismatch):
			writeError(w, http.StatusUnprocessableEntity, "amount_mismatch", err.Error())
		default:
			// Provider/network problems: the order stays PENDING and the
			// customer can safely retry.
			slog.Error("Failed to open payment session", "order_id", orderID, "provider", req.Provider, "err", err)
			writeError(w, http.StatusBadGateway, "provider_unavailable", "payment provider unavailable, please retry")
		}
		return
	}

	h.countSession(req.Provider, "ok")
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	err := h.checkout.CancelOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusConflict, ve.Reason, ve.Error())
			return
		}
		slog.Error("Failed to cancel order", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to cancel order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(entity.StatusCancelled)})
}

type fulfillmentRequest struct {
	Status entity.OrderStatus `json:"status"`
}

// handleUpdateFulfillment serves the admin console's SHIPPED/DELIVERED
// updates, guarded by the same transition table as the reconciler.
func (h *Handler) handleUpdateFulfillment(w http.ResponseWriter, r *http.Request) {
	var req fulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if req.Status != entity.StatusShipped && req.Status != entity.StatusDelivered {
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be SHIPPED or DELIVERED")
		return
	}

	moved, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), req.Status,
		entity.AllowedSources(req.Status)...)
	if err != nil {
		slog.Error("Failed to update fulfillment status", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to update status")
		return
	}
	if !moved {
		writeError(w, http.StatusConflict, "invalid_transition", "order is not in a state that allows this update")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.observe("webhook", start)

	provider := r.PathValue("provider")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to read body")
		return
	}

	err = h.reconciler.HandleWebhook(r.Context(), provider, body, r.Header)
	if err != nil {
		h.countWebhook(provider, "rejected")
		switch {
		case errors.Is(err, service.ErrUnknownProvider):
			writeError(w, http.StatusNotFound, "unknown_provider", "unknown provider")
		case errors.Is(err, service.ErrUnverifiedWebhook), errors.Is(err, payment.ErrBadSignature):
			slog.Warn("Rejected unverified webhook", "provider", provider)
			writeError(w, http.StatusBadRequest, "unverified", "signature verification failed")
		default:
			writeError(w, http.StatusInternalServerError, "internal", "failed to process webhook")
		}
		return
	}

	// Ack even when the event was a no-op so the provider stops
	// redelivering.
	h.countWebhook(provider, "received")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) observe(handler string, start time.Time) {
	if h.metrics != nil {
		h.metrics.RequestLatency.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (h *Handler) countSession(provider, result string) {
	if h.metrics != nil {
		h.metrics.PaymentSessions.WithLabelValues(provider, result).Inc()
	}
}

func (h *Handler) countWebhook(provider, outcome string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(provider, outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason, detail string) {
	writeJSON(w, status, map[string]string{"error": reason, "detail": detail})
}

// EnableCORS is a middleware to allow the storefront frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
