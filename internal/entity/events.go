package entity

import "time"

// Event represents a domain event published to downstream consumers.
type Event interface {
	EventType() string
}

// OrderProcessing is emitted when deferred-payment instructions are issued
// for an order.
type OrderProcessing struct {
	OrderID  string    `json:"order_id"`
	Provider string    `json:"provider"`
	Method   string    `json:"method"`
	At       time.Time `json:"at"`
}

func (e OrderProcessing) EventType() string { return "OrderProcessing" }

// OrderPaid is emitted when a provider confirms funds for an order.
type OrderPaid struct {
	OrderID  string    `json:"order_id"`
	Provider string    `json:"provider"`
	Total    int64     `json:"total"`
	Currency string    `json:"currency"`
	PaidAt   time.Time `json:"paid_at"`
}

func (e OrderPaid) EventType() string { return "OrderPaid" }

// OrderCancelled is emitted when an order is cancelled before payment.
type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func (e OrderCancelled) EventType() string { return "OrderCancelled" }

// WebhookRecord is the audit row persisted for every inbound provider
// notification, including payloads that failed to parse.
type WebhookRecord struct {
	Provider       string    `json:"provider"`
	RemoteEventID  string    `json:"remote_event_id"`
	EventType      string    `json:"event_type"`
	Payload        []byte    `json:"payload"`
	SignatureValid bool      `json:"signature_valid"`
	ReceivedAt     time.Time `json:"received_at"`
}
