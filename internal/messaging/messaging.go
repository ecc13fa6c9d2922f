package messaging

import "context"

// Topics for the order lifecycle events published after reconciliation
// state changes.
const (
	TopicOrderProcessing = "orders.processing"
	TopicOrderPaid       = "orders.paid"
	TopicOrderCancelled  = "orders.cancelled"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber defines an interface for subscribing to a message topic.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error)
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	return nil
}
