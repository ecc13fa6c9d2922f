package service

import (
	"errors"
	"fmt"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
)

// ErrAmountMismatch means the stored total disagrees with the amounts
// recomputed from the stored order items: either tampering or a stale
// client total.
var ErrAmountMismatch = errors.New("stored total does not match recomputed amounts")

// Amounts is the server-side recomputation of an order's money fields.
type Amounts struct {
	Subtotal int64
	Shipping int64
	Total    int64
}

// Revalidate recomputes the subtotal from the stored order items (never
// from client input), adds the stored shipping fee, and checks the stored
// total against it. It must run immediately before any provider session is
// opened; only its output is ever sent to a provider.
func Revalidate(order *entity.Order) (Amounts, error) {
	var subtotal int64
	for _, item := range order.Items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	total := subtotal + order.ShippingFee

	if abs64(total-order.Total) > entity.AmountTolerance {
		return Amounts{}, fmt.Errorf("%w: stored %d, recomputed %d", ErrAmountMismatch, order.Total, total)
	}
	return Amounts{Subtotal: subtotal, Shipping: order.ShippingFee, Total: total}, nil
}
