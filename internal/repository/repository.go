package repository

import (
	"context"
	"errors"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// ProductRepository handles persistence for catalog products.
type ProductRepository interface {
	FindAll(ctx context.Context) ([]entity.Product, error)
	FindByID(ctx context.Context, id string) (*entity.Product, error)
	// Seed inserts initial products and variants if the catalog is empty.
	Seed(ctx context.Context, products []entity.Product, variants []entity.ProductVariant) error
}

// OrderRepository handles persistence for orders. The status column is only
// ever changed through UpdateStatus so that concurrent writers race on a
// conditional update instead of overwriting each other.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	// FindByProviderRef resolves an order from the payment provider's own
	// session/transaction id, for webhooks that omit the internal order id.
	FindByProviderRef(ctx context.Context, ref string) (*entity.Order, error)
	FindRecent(ctx context.Context, limit int) ([]entity.Order, error)
	// UpdateStatus conditionally moves an order to `to` only if its current
	// status is one of `from`. Returns whether the row was updated.
	UpdateStatus(ctx context.Context, id string, to entity.OrderStatus, from ...entity.OrderStatus) (bool, error)
	SetProviderRef(ctx context.Context, id, ref string) error
	SetPaymentMethod(ctx context.Context, id, method string) error
	// AppendInstruction adds a payment instruction to the order's
	// append-only instruction list.
	AppendInstruction(ctx context.Context, id string, ins entity.PaymentInstruction) error
}

// InventoryRepository is the inventory ledger: availability checks and
// idempotent per-(order, line) stock decrements.
type InventoryRepository interface {
	// CheckAvailable verifies every line against current stock. A line with
	// size/color must match an existing variant with enough stock; a line
	// without them is checked against the product's base stock counter.
	// Returns *entity.InsufficientStockError on the first failing line.
	CheckAvailable(ctx context.Context, lines []entity.StockLine) error
	// Decrement applies each line's quantity to its stock counter exactly
	// once per (orderID, line), no matter how many times it is called.
	// Per-line failures are logged and skipped; the remaining lines are
	// still applied.
	Decrement(ctx context.Context, orderID string, lines []entity.StockLine) error
}

// WebhookEventRepository stores the audit trail of inbound provider
// notifications. Record reports false when the (provider, remote event id)
// pair was already stored, i.e. a redelivery.
type WebhookEventRepository interface {
	Record(ctx context.Context, rec entity.WebhookRecord) (bool, error)
}
