package entity

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusPaid       OrderStatus = "PAID"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// transitions is the closed set of legal status moves. Anything not listed
// here is rejected, which is what keeps reconciliation safe under duplicate
// and out-of-order webhook delivery.
var transitions = map[OrderStatus][]OrderStatus{
	StatusProcessing: {StatusPending},
	StatusPaid:       {StatusPending, StatusProcessing},
	StatusShipped:    {StatusPaid},
	StatusDelivered:  {StatusShipped},
	StatusCancelled:  {StatusPending, StatusProcessing},
}

// AllowedSources returns the statuses from which a transition into `to` is
// accepted. The slice is a copy safe for the caller to pass to a
// conditional update.
func AllowedSources(to OrderStatus) []OrderStatus {
	src := transitions[to]
	out := make([]OrderStatus, len(src))
	copy(out, src)
	return out
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Valid reports whether the status is one of the known states.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}
