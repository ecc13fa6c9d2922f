package entity

import (
	"fmt"
	"time"
)

// All monetary amounts are stored in minor currency units (cents).
// AmountTolerance is the maximum accepted drift when comparing a stored
// total against a recomputed one.
const AmountTolerance = 1

// Product represents a catalog product.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
	Stock       int    `json:"stock"`
	Active      bool   `json:"active"`
}

// ProductVariant is a sized/colored variation of a product with its own
// stock counter. Products without variants track stock on the product row.
type ProductVariant struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Stock     int    `json:"stock"`
}

// CustomerSnapshot is the customer contact data copied onto an order at
// creation time. It is never a live reference to a user profile.
type CustomerSnapshot struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// AddressSnapshot is the shipping address copied onto an order at creation.
type AddressSnapshot struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// OrderItem is a line item within an order. UnitPrice is the price at time
// of purchase and is never recomputed from the live catalog.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// PaymentInstruction is a human-facing payment reference issued by a
// deferred-payment provider (pay-at-the-counter entity/reference pairs,
// barcodes). The list on an order is append-only.
type PaymentInstruction struct {
	Provider  string    `json:"provider"`
	Method    string    `json:"method"`
	Entity    string    `json:"entity,omitempty"`
	Reference string    `json:"reference,omitempty"`
	Barcode   string    `json:"barcode,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Order is the durable record of a customer order and the single source of
// truth for its state.
type Order struct {
	ID            string               `json:"id"`
	Status        OrderStatus          `json:"status"`
	Customer      CustomerSnapshot     `json:"customer"`
	Shipping      AddressSnapshot      `json:"shipping"`
	Subtotal      int64                `json:"subtotal"`
	ShippingFee   int64                `json:"shipping_fee"`
	Total         int64                `json:"total"`
	Currency      string               `json:"currency"`
	PaymentMethod string               `json:"payment_method,omitempty"`
	ProviderRef   string               `json:"provider_ref,omitempty"`
	Items         []OrderItem          `json:"items"`
	Instructions  []PaymentInstruction `json:"instructions,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// StockLine identifies one inventory target and a quantity. Size and color
// select a variant row; when both are empty the product's base stock
// counter is targeted.
type StockLine struct {
	ProductID string
	Size      string
	Color     string
	Quantity  int
}

// Line converts an order item into its inventory target.
func (i OrderItem) Line() StockLine {
	return StockLine{ProductID: i.ProductID, Size: i.Size, Color: i.Color, Quantity: i.Quantity}
}

// InsufficientStockError reports which line failed an availability check.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Color     string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.Size != "" || e.Color != "" {
		return fmt.Sprintf("insufficient stock for product %s (size=%q color=%q): available %d, requested %d",
			e.ProductID, e.Size, e.Color, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}
