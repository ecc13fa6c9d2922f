package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/messaging"
	"github.com/EduardooSodre/zarife-sub000/internal/payment"
)

func pendingOrder(orders *memOrders) *entity.Order {
	order := &entity.Order{
		ID:     "ord-pay-1",
		Status: entity.StatusPending,
		Customer: entity.CustomerSnapshot{
			Name: "Ana Lima", Email: "ana@example.com",
		},
		Items: []entity.OrderItem{
			{ProductID: "tee-1", Name: "T-Shirt", UnitPrice: 2999, Quantity: 2, Size: "M", Color: "black"},
		},
		Subtotal:    5998,
		ShippingFee: 500,
		Total:       6498,
		Currency:    "EUR",
	}
	orders.Create(context.Background(), order)
	return order
}

func newPaymentService(orders *memOrders, prov *fakeProvider, rates RateSource) (*PaymentService, *recordPublisher) {
	publisher := &recordPublisher{}
	svc := NewPaymentService(orders, payment.NewRegistry(prov), rates, "USD", publisher)
	return svc, publisher
}

func TestOpenSession_Redirect(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	prov := &fakeProvider{name: "cardlink", session: payment.Session{ID: "cs_123", RedirectURL: "https://pay.example/cs_123"}}
	svc, _ := newPaymentService(orders, prov, &fakeRates{rate: 1})

	result, err := svc.OpenSession(context.Background(), order.ID, "cardlink", "ana@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.RedirectURL != "https://pay.example/cs_123" {
		t.Errorf("Expected redirect URL, got %q", result.RedirectURL)
	}

	if len(prov.calls) != 1 {
		t.Fatalf("Expected 1 session call, got %d", len(prov.calls))
	}
	req := prov.calls[0]
	if req.Amount != 6498 {
		t.Errorf("Expected revalidated amount 6498, got %d", req.Amount)
	}
	if req.IdempotencyKey != "order-"+order.ID {
		t.Errorf("Expected idempotency key derived from order id, got %q", req.IdempotencyKey)
	}

	stored, _ := orders.FindByID(context.Background(), order.ID)
	if stored.ProviderRef != "cs_123" {
		t.Errorf("Expected provider ref cs_123 persisted, got %q", stored.ProviderRef)
	}
	if stored.Status != entity.StatusPending {
		t.Errorf("Expected redirect flow to leave order PENDING, got %s", stored.Status)
	}
}

func TestOpenSession_TamperedTotalRefusedBeforeProviderContact(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	order.Total += 10000
	orders.Create(context.Background(), order) // overwrite with tampered total
	prov := &fakeProvider{name: "cardlink"}
	svc, _ := newPaymentService(orders, prov, &fakeRates{rate: 1})

	_, err := svc.OpenSession(context.Background(), order.ID, "cardlink", "ana@example.com")
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("Expected ErrAmountMismatch, got: %v", err)
	}
	if len(prov.calls) != 0 {
		t.Errorf("Expected provider never contacted, got %d calls", len(prov.calls))
	}
}

func TestOpenSession_NotPending(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	orders.UpdateStatus(context.Background(), order.ID, entity.StatusPaid, entity.StatusPending)
	prov := &fakeProvider{name: "cardlink"}
	svc, _ := newPaymentService(orders, prov, &fakeRates{rate: 1})

	_, err := svc.OpenSession(context.Background(), order.ID, "cardlink", "ana@example.com")
	if !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("Expected ErrOrderNotPending, got: %v", err)
	}
}

func TestOpenSession_WrongOwner(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	prov := &fakeProvider{name: "cardlink"}
	svc, _ := newPaymentService(orders, prov, &fakeRates{rate: 1})

	_, err := svc.OpenSession(context.Background(), order.ID, "cardlink", "someone-else@example.com")
	if !errors.Is(err, ErrNotOrderOwner) {
		t.Fatalf("Expected ErrNotOrderOwner, got: %v", err)
	}
}

func TestOpenSession_UnknownProvider(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	svc, _ := newPaymentService(orders, &fakeProvider{name: "cardlink"}, &fakeRates{rate: 1})

	_, err := svc.OpenSession(context.Background(), order.ID, "bitbarter", "ana@example.com")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("Expected ErrUnknownProvider, got: %v", err)
	}
}

func TestOpenSession_CurrencyFallback(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	prov := &fakeProvider{
		name:             "walletgo",
		rejectCurrencies: map[string]bool{"EUR": true},
		session:          payment.Session{ID: "ws_9", RedirectURL: "https://wallet.example/ws_9"},
	}
	rates := &fakeRates{rate: 1.10}
	svc, _ := newPaymentService(orders, prov, rates)

	result, err := svc.OpenSession(context.Background(), order.ID, "walletgo", "ana@example.com")
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got: %v", err)
	}
	if result.RedirectURL == "" {
		t.Error("Expected redirect URL from fallback session")
	}

	if len(prov.calls) != 2 {
		t.Fatalf("Expected exactly 2 session attempts, got %d", len(prov.calls))
	}
	retry := prov.calls[1]
	if retry.Currency != "USD" {
		t.Errorf("Expected retry in USD, got %s", retry.Currency)
	}
	if retry.Amount != 7148 { // round(6498 * 1.10)
		t.Errorf("Expected converted amount 7148, got %d", retry.Amount)
	}
	if retry.Items[0].UnitPrice != 3299 { // round(2999 * 1.10)
		t.Errorf("Expected converted unit price 3299, got %d", retry.Items[0].UnitPrice)
	}
	if rates.calls != 1 {
		t.Errorf("Expected a single rate lookup, got %d", rates.calls)
	}
}

func TestOpenSession_FallbackAlsoRejected(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	prov := &fakeProvider{
		name:             "walletgo",
		rejectCurrencies: map[string]bool{"EUR": true, "USD": true},
	}
	svc, _ := newPaymentService(orders, prov, &fakeRates{rate: 1.10})

	_, err := svc.OpenSession(context.Background(), order.ID, "walletgo", "ana@example.com")
	if err == nil {
		t.Fatal("Expected error when fallback currency is also rejected")
	}
	// One original attempt plus one fallback attempt, never a retry loop.
	if len(prov.calls) != 2 {
		t.Errorf("Expected exactly 2 session attempts, got %d", len(prov.calls))
	}

	stored, _ := orders.FindByID(context.Background(), order.ID)
	if stored.Status != entity.StatusPending {
		t.Errorf("Expected order to stay PENDING after failure, got %s", stored.Status)
	}
	if stored.ProviderRef != "" {
		t.Errorf("Expected no provider ref persisted after failure, got %q", stored.ProviderRef)
	}
}

func TestOpenSession_RateLookupFailure(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	prov := &fakeProvider{name: "walletgo", rejectCurrencies: map[string]bool{"EUR": true}}
	svc, _ := newPaymentService(orders, prov, &fakeRates{err: errors.New("rate service down")})

	_, err := svc.OpenSession(context.Background(), order.ID, "walletgo", "ana@example.com")
	if err == nil {
		t.Fatal("Expected error when rate lookup fails")
	}
	if len(prov.calls) != 1 {
		t.Errorf("Expected no fallback session attempt without a rate, got %d calls", len(prov.calls))
	}
}

func TestOpenSession_DeferredInstructions(t *testing.T) {
	orders := newMemOrders()
	order := pendingOrder(orders)
	prov := &fakeProvider{
		name: "payslip",
		session: payment.Session{
			ID: "slip_7",
			Instruction: &entity.PaymentInstruction{
				Method: "payslip", Entity: "11604", Reference: "123 456 789", IssuedAt: time.Now(),
			},
		},
	}
	svc, publisher := newPaymentService(orders, prov, &fakeRates{rate: 1})

	result, err := svc.OpenSession(context.Background(), order.ID, "payslip", "ana@example.com")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Instruction == nil || result.Instruction.Reference != "123 456 789" {
		t.Fatal("Expected payment instructions in the result")
	}

	stored, _ := orders.FindByID(context.Background(), order.ID)
	if stored.Status != entity.StatusProcessing {
		t.Errorf("Expected status %s after instructions issued, got %s", entity.StatusProcessing, stored.Status)
	}
	if stored.PaymentMethod != "payslip" {
		t.Errorf("Expected payment method payslip, got %q", stored.PaymentMethod)
	}
	if len(stored.Instructions) != 1 {
		t.Fatalf("Expected 1 stored instruction, got %d", len(stored.Instructions))
	}

	if got := publisher.byTopic(messaging.TopicOrderProcessing); len(got) != 1 {
		t.Errorf("Expected OrderProcessing event published, got %d", len(got))
	}
}
