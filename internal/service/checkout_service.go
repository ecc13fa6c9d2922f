package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/messaging"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

// ValidationError is a synchronous rejection of a checkout request. Reason
// is machine-readable for the storefront; Err carries the detail.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CreateOrderInput is the cart submission: items at their cart prices,
// customer and shipping snapshots, and the client-computed amounts.
type CreateOrderInput struct {
	Items       []entity.OrderItem
	Customer    entity.CustomerSnapshot
	Shipping    entity.AddressSnapshot
	Subtotal    int64
	ShippingFee int64
	Total       int64
	Currency    string
}

// CheckoutService validates carts and creates PENDING orders. It never
// mutates inventory: reservation is deferred to confirmed payment so
// abandoned checkouts don't hold stock hostage.
type CheckoutService struct {
	products  repository.ProductRepository
	inventory repository.InventoryRepository
	orders    repository.OrderRepository
	publisher messaging.Publisher
}

func NewCheckoutService(
	products repository.ProductRepository,
	inventory repository.InventoryRepository,
	orders repository.OrderRepository,
	publisher messaging.Publisher,
) *CheckoutService {
	return &CheckoutService{
		products:  products,
		inventory: inventory,
		orders:    orders,
		publisher: publisher,
	}
}

// CreateOrder runs the validation sequence and persists the order. Checks
// short-circuit on the first failure: product existence, variant/base stock,
// then the amount identity.
func (s *CheckoutService) CreateOrder(ctx context.Context, in CreateOrderInput) (*entity.Order, error) {
	if len(in.Items) == 0 {
		return nil, &ValidationError{Reason: "empty_order", Err: errors.New("order must have at least one item")}
	}

	lines := make([]entity.StockLine, 0, len(in.Items))
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, &ValidationError{Reason: "invalid_quantity",
				Err: fmt.Errorf("quantity %d for product %s", item.Quantity, item.ProductID)}
		}

		product, err := s.products.FindByID(ctx, item.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ValidationError{Reason: "unknown_product",
				Err: fmt.Errorf("product %s does not exist", item.ProductID)}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up product %s: %w", item.ProductID, err)
		}
		if !product.Active {
			return nil, &ValidationError{Reason: "inactive_product",
				Err: fmt.Errorf("product %s is no longer sold", item.ProductID)}
		}

		lines = append(lines, item.Line())
	}

	if err := s.inventory.CheckAvailable(ctx, lines); err != nil {
		var ise *entity.InsufficientStockError
		if errors.As(err, &ise) {
			return nil, &ValidationError{Reason: "insufficient_stock", Err: ise}
		}
		return nil, fmt.Errorf("availability check failed: %w", err)
	}

	if abs64(in.Total-(in.Subtotal+in.ShippingFee)) > entity.AmountTolerance {
		return nil, &ValidationError{Reason: "amount_mismatch",
			Err: fmt.Errorf("total %d != subtotal %d + shipping %d", in.Total, in.Subtotal, in.ShippingFee)}
	}

	currency := in.Currency
	if currency == "" {
		currency = "EUR"
	}

	order := &entity.Order{
		ID:          uuid.NewString(),
		Status:      entity.StatusPending,
		Customer:    in.Customer,
		Shipping:    in.Shipping,
		Subtotal:    in.Subtotal,
		ShippingFee: in.ShippingFee,
		Total:       in.Total,
		Currency:    currency,
		Items:       in.Items,
		CreatedAt:   time.Now(),
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	slog.Info("Order created", "order_id", order.ID, "items", len(order.Items), "total", order.Total)
	return order, nil
}

// CancelOrder cancels an order that has not yet been paid.
func (s *CheckoutService) CancelOrder(ctx context.Context, orderID string) error {
	moved, err := s.orders.UpdateStatus(ctx, orderID, entity.StatusCancelled,
		entity.AllowedSources(entity.StatusCancelled)...)
	if err != nil {
		return fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if !moved {
		return &ValidationError{Reason: "not_cancellable",
			Err: fmt.Errorf("order %s is past the point of cancellation", orderID)}
	}

	if s.publisher != nil {
		event := entity.OrderCancelled{OrderID: orderID, CancelledAt: time.Now()}
		if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderCancelled, orderID, event); err != nil {
			slog.Error("Failed to publish OrderCancelled", "order_id", orderID, "err", err)
		}
	}
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
