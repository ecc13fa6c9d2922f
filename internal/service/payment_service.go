package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/EduardooSodre/zarife-sub000/internal/currency"
	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/messaging"
	"github.com/EduardooSodre/zarife-sub000/internal/payment"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

var (
	// ErrOrderNotPending means the order already has a payment in flight
	// or settled; only PENDING orders can open a new session.
	ErrOrderNotPending = errors.New("order is not awaiting payment")
	// ErrNotOrderOwner means the requesting identity does not match the
	// order's customer snapshot.
	ErrNotOrderOwner = errors.New("order does not belong to requester")
	// ErrUnknownProvider means no adapter is configured under that name.
	ErrUnknownProvider = errors.New("unknown payment provider")
)

// RateSource supplies a single currency-conversion rate for the one-shot
// fallback path.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

// SessionResult is what the storefront gets back: a redirect URL for
// card/wallet flows or payment instructions for deferred methods.
type SessionResult struct {
	Provider    string                     `json:"provider"`
	RedirectURL string                     `json:"redirect_url,omitempty"`
	Instruction *entity.PaymentInstruction `json:"instructions,omitempty"`
}

// PaymentService opens remote payment sessions for PENDING orders.
type PaymentService struct {
	orders           repository.OrderRepository
	registry         *payment.Registry
	rates            RateSource
	fallbackCurrency string
	publisher        messaging.Publisher
}

func NewPaymentService(
	orders repository.OrderRepository,
	registry *payment.Registry,
	rates RateSource,
	fallbackCurrency string,
	publisher messaging.Publisher,
) *PaymentService {
	return &PaymentService{
		orders:           orders,
		registry:         registry,
		rates:            rates,
		fallbackCurrency: fallbackCurrency,
		publisher:        publisher,
	}
}

// OpenSession opens a remote payment session for the order. The amount sent
// to the provider is always the revalidated one, never a client-supplied
// number. On an unsupported-currency rejection it converts amounts with a
// single fetched rate and retries exactly once.
func (s *PaymentService) OpenSession(ctx context.Context, orderID, providerName, requesterEmail string) (*SessionResult, error) {
	prov, ok := s.registry.Get(providerName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if requesterEmail != "" && !strings.EqualFold(requesterEmail, order.Customer.Email) {
		return nil, ErrNotOrderOwner
	}
	if order.Status != entity.StatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderNotPending, order.ID, order.Status)
	}

	// Closes the tampering window between order creation and payment.
	amounts, err := Revalidate(order)
	if err != nil {
		return nil, err
	}

	req := payment.SessionRequest{
		OrderID:        order.ID,
		IdempotencyKey: "order-" + order.ID,
		Amount:         amounts.Total,
		Currency:       order.Currency,
		Items:          sessionItems(order.Items),
		CustomerEmail:  order.Customer.Email,
	}

	sess, err := prov.CreateSession(ctx, req)
	if errors.Is(err, payment.ErrUnsupportedCurrency) {
		sess, err = s.retryWithFallbackCurrency(ctx, prov, req, amounts)
	}
	if err != nil {
		return nil, err
	}

	// Persist the correlation id first: a webhook can beat this response.
	if err := s.orders.SetProviderRef(ctx, order.ID, sess.ID); err != nil {
		return nil, fmt.Errorf("failed to store provider session id: %w", err)
	}

	result := &SessionResult{Provider: providerName, RedirectURL: sess.RedirectURL}
	if sess.Instruction != nil {
		s.applyInstruction(ctx, order.ID, providerName, *sess.Instruction)
		result.Instruction = sess.Instruction
	}

	slog.Info("Payment session opened",
		"order_id", order.ID, "provider", providerName, "session_id", sess.ID)
	return result, nil
}

// retryWithFallbackCurrency performs the single fallback attempt: fetch one
// rate, recompute every line amount and the total, retry session creation
// once. No further retry loop.
func (s *PaymentService) retryWithFallbackCurrency(ctx context.Context, prov payment.Provider, req payment.SessionRequest, amounts Amounts) (*payment.Session, error) {
	if s.rates == nil || s.fallbackCurrency == "" || strings.EqualFold(req.Currency, s.fallbackCurrency) {
		return nil, fmt.Errorf("%w: %s, no fallback available", payment.ErrUnsupportedCurrency, req.Currency)
	}

	rate, err := s.rates.Rate(ctx, req.Currency, s.fallbackCurrency)
	if err != nil {
		return nil, fmt.Errorf("currency fallback %s->%s: %w", req.Currency, s.fallbackCurrency, err)
	}

	slog.Info("Retrying session in fallback currency",
		"order_id", req.OrderID, "from", req.Currency, "to", s.fallbackCurrency, "rate", rate)

	converted := req
	converted.Currency = s.fallbackCurrency
	converted.Amount = currency.Convert(amounts.Total, rate)
	converted.Items = make([]payment.SessionItem, len(req.Items))
	for i, item := range req.Items {
		item.UnitPrice = currency.Convert(item.UnitPrice, rate)
		converted.Items[i] = item
	}

	sess, err := prov.CreateSession(ctx, converted)
	if err != nil {
		return nil, fmt.Errorf("fallback session creation: %w", err)
	}
	return sess, nil
}

// applyInstruction records deferred-payment instructions returned directly
// by session creation and moves the order to PROCESSING. Failures here are
// logged, not fatal: the provider will also deliver the instructions via
// webhook.
func (s *PaymentService) applyInstruction(ctx context.Context, orderID, providerName string, ins entity.PaymentInstruction) {
	ins.Provider = providerName
	if err := s.orders.AppendInstruction(ctx, orderID, ins); err != nil {
		slog.Error("Failed to store payment instruction", "order_id", orderID, "err", err)
	}

	moved, err := s.orders.UpdateStatus(ctx, orderID, entity.StatusProcessing,
		entity.AllowedSources(entity.StatusProcessing)...)
	if err != nil {
		slog.Error("Failed to move order to PROCESSING", "order_id", orderID, "err", err)
		return
	}
	if !moved {
		return
	}

	method := ins.Method
	if method == "" {
		method = providerName
	}
	if err := s.orders.SetPaymentMethod(ctx, orderID, method); err != nil {
		slog.Error("Failed to set payment method", "order_id", orderID, "err", err)
	}

	if s.publisher != nil {
		event := entity.OrderProcessing{OrderID: orderID, Provider: providerName, Method: method, At: time.Now()}
		if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderProcessing, orderID, event); err != nil {
			slog.Error("Failed to publish OrderProcessing", "order_id", orderID, "err", err)
		}
	}
}

func sessionItems(items []entity.OrderItem) []payment.SessionItem {
	out := make([]payment.SessionItem, len(items))
	for i, item := range items {
		out[i] = payment.SessionItem{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	return out
}
