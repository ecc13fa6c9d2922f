package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/messaging"
	"github.com/EduardooSodre/zarife-sub000/internal/payment"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

// ErrUnverifiedWebhook means signature verification failed. It is the only
// webhook error surfaced to the provider, so its own redelivery mechanism
// retries; everything after verification is acknowledged.
var ErrUnverifiedWebhook = errors.New("unverified webhook")

// ReconcileService converges order state and inventory from asynchronous
// provider notifications. Every application step is idempotent because the
// provider's redelivery is the only retry mechanism: duplicates and
// out-of-order deliveries must land on the same final state.
type ReconcileService struct {
	registry  *payment.Registry
	orders    repository.OrderRepository
	inventory repository.InventoryRepository
	webhooks  repository.WebhookEventRepository
	publisher messaging.Publisher
}

func NewReconcileService(
	registry *payment.Registry,
	orders repository.OrderRepository,
	inventory repository.InventoryRepository,
	webhooks repository.WebhookEventRepository,
	publisher messaging.Publisher,
) *ReconcileService {
	return &ReconcileService{
		registry:  registry,
		orders:    orders,
		inventory: inventory,
		webhooks:  webhooks,
		publisher: publisher,
	}
}

// HandleWebhook runs the verify -> resolve -> classify -> apply pipeline.
// A nil return means the event was processed (or deliberately no-op'd) and
// the provider should be ack'd; an error return tells the caller to answer
// with a failure status so the provider redelivers.
func (s *ReconcileService) HandleWebhook(ctx context.Context, providerName string, body []byte, header http.Header) error {
	prov, ok := s.registry.Get(providerName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	if err := prov.VerifyWebhook(body, header); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnverifiedWebhook, providerName, err)
	}

	record := entity.WebhookRecord{
		Provider:       providerName,
		Payload:        body,
		SignatureValid: true,
		ReceivedAt:     time.Now(),
	}

	event, err := prov.ParseEvent(body)
	if err != nil {
		// Unclassifiable but authentic: keep the full payload for the
		// audit trail and manual reconciliation, then ack.
		if _, rerr := s.webhooks.Record(ctx, record); rerr != nil {
			slog.Error("Failed to record unparseable webhook", "provider", providerName, "err", rerr)
		}
		slog.Warn("Webhook payload could not be parsed, acknowledged for manual reconciliation",
			"provider", providerName, "err", err)
		return nil
	}

	record.RemoteEventID = event.RemoteID
	record.EventType = event.Type
	inserted, err := s.webhooks.Record(ctx, record)
	if err != nil {
		slog.Error("Failed to record webhook event", "provider", providerName, "remote_id", event.RemoteID, "err", err)
	} else if !inserted {
		// Redelivery. The state-machine guard and the applied-set
		// decrement make reprocessing safe, so keep going.
		slog.Info("Webhook event redelivered", "provider", providerName, "remote_id", event.RemoteID)
	}

	order := s.resolveOrder(ctx, event)
	if order == nil {
		// Money-relevant data with no matching order. Ack to stop a
		// redelivery storm, but never drop it silently.
		slog.Warn("Unresolved webhook event, flagged for manual reconciliation",
			"provider", providerName, "remote_id", event.RemoteID,
			"order_id", event.OrderID, "session_id", event.SessionID)
		return nil
	}

	switch event.Class {
	case payment.EventReferenceIssued:
		s.applyReferenceIssued(ctx, order, event)
	case payment.EventPaymentApproved:
		s.applyPaymentApproved(ctx, order, event)
	default:
		slog.Error("Unhandled provider event type",
			"provider", providerName, "type", event.Type, "order_id", order.ID)
	}
	return nil
}

// resolveOrder tries the payload's explicit order id first, then falls back
// to the provider session id stored when the session was opened.
func (s *ReconcileService) resolveOrder(ctx context.Context, event *payment.ProviderEvent) *entity.Order {
	if event.OrderID != "" {
		order, err := s.orders.FindByID(ctx, event.OrderID)
		if err == nil {
			return order
		}
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("Order lookup failed", "order_id", event.OrderID, "err", err)
		}
	}
	if event.SessionID != "" {
		order, err := s.orders.FindByProviderRef(ctx, event.SessionID)
		if err == nil {
			return order
		}
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("Order lookup by provider ref failed", "session_id", event.SessionID, "err", err)
		}
	}
	return nil
}

// applyReferenceIssued stores the human-facing payment instructions and
// moves PENDING -> PROCESSING. A stale delivery after the order advanced is
// a no-op for status, but the instruction is still appended to history.
func (s *ReconcileService) applyReferenceIssued(ctx context.Context, order *entity.Order, event *payment.ProviderEvent) {
	if event.Instruction != nil {
		ins := *event.Instruction
		ins.Provider = event.Provider
		if err := s.orders.AppendInstruction(ctx, order.ID, ins); err != nil {
			slog.Error("Failed to append payment instruction", "order_id", order.ID, "err", err)
		}
	}

	moved, err := s.orders.UpdateStatus(ctx, order.ID, entity.StatusProcessing,
		entity.AllowedSources(entity.StatusProcessing)...)
	if err != nil {
		slog.Error("Failed to move order to PROCESSING", "order_id", order.ID, "err", err)
		return
	}
	if !moved {
		slog.Info("Stale reference-issued event, status unchanged",
			"order_id", order.ID, "status", order.Status)
		return
	}

	method := event.Method
	if method == "" {
		method = event.Provider
	}
	if err := s.orders.SetPaymentMethod(ctx, order.ID, method); err != nil {
		slog.Error("Failed to set payment method", "order_id", order.ID, "err", err)
	}

	if s.publisher != nil {
		ev := entity.OrderProcessing{OrderID: order.ID, Provider: event.Provider, Method: method, At: time.Now()}
		if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderProcessing, order.ID, ev); err != nil {
			slog.Error("Failed to publish OrderProcessing", "order_id", order.ID, "err", err)
		}
	}
}

// applyPaymentApproved moves the order to PAID and decrements inventory.
// The conditional status update decides the race between duplicate
// deliveries: only the winner proceeds to side effects. A decrement failure
// never rolls back PAID; the gap is logged for manual reconciliation.
func (s *ReconcileService) applyPaymentApproved(ctx context.Context, order *entity.Order, event *payment.ProviderEvent) {
	moved, err := s.orders.UpdateStatus(ctx, order.ID, entity.StatusPaid,
		entity.AllowedSources(entity.StatusPaid)...)
	if err != nil {
		slog.Error("Failed to move order to PAID", "order_id", order.ID, "err", err)
		return
	}
	if !moved {
		slog.Info("Duplicate payment-approved event, order already settled",
			"order_id", order.ID, "status", order.Status)
		return
	}

	// Preserve a deferred-method label set earlier: a reference payment
	// that later confirms must not relabel itself as the umbrella provider.
	if order.PaymentMethod == "" {
		if err := s.orders.SetPaymentMethod(ctx, order.ID, event.Provider); err != nil {
			slog.Error("Failed to set payment method", "order_id", order.ID, "err", err)
		}
	}

	lines := make([]entity.StockLine, len(order.Items))
	for i, item := range order.Items {
		lines[i] = item.Line()
	}
	if err := s.inventory.Decrement(ctx, order.ID, lines); err != nil {
		slog.Error("Stock decrement failed, order stays PAID; inventory gap flagged",
			"order_id", order.ID, "err", err)
	}

	slog.Info("Order paid", "order_id", order.ID, "provider", event.Provider)

	if s.publisher != nil {
		ev := entity.OrderPaid{
			OrderID:  order.ID,
			Provider: event.Provider,
			Total:    order.Total,
			Currency: order.Currency,
			PaidAt:   time.Now(),
		}
		if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderPaid, order.ID, ev); err != nil {
			slog.Error("Failed to publish OrderPaid", "order_id", order.ID, "err", err)
		}
	}
}
