package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/payment"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

// In-memory fakes implementing the repository contracts, so the services
// can be exercised without Postgres.

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*entity.Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*entity.Order)}
}

func (m *memOrders) Create(ctx context.Context, order *entity.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	cp.Items = append([]entity.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return nil
}

func (m *memOrders) get(id string) (*entity.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *order
	cp.Items = append([]entity.OrderItem(nil), order.Items...)
	cp.Instructions = append([]entity.PaymentInstruction(nil), order.Instructions...)
	return &cp, nil
}

func (m *memOrders) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *memOrders) FindByProviderRef(ctx context.Context, ref string) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref == "" {
		return nil, repository.ErrNotFound
	}
	for id, order := range m.orders {
		if order.ProviderRef == ref {
			return m.get(id)
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memOrders) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Order
	for _, order := range m.orders {
		out = append(out, *order)
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, id string, to entity.OrderStatus, from ...entity.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if order.Status == f {
			order.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memOrders) SetProviderRef(ctx context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	order.ProviderRef = ref
	return nil
}

func (m *memOrders) SetPaymentMethod(ctx context.Context, id, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	order.PaymentMethod = method
	return nil
}

func (m *memOrders) AppendInstruction(ctx context.Context, id string, ins entity.PaymentInstruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	order.Instructions = append(order.Instructions, ins)
	return nil
}

type memProducts struct {
	products map[string]entity.Product
}

func newMemProducts(products ...entity.Product) *memProducts {
	m := &memProducts{products: make(map[string]entity.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memProducts) FindAll(ctx context.Context) ([]entity.Product, error) {
	var out []entity.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) Seed(ctx context.Context, products []entity.Product, variants []entity.ProductVariant) error {
	return nil
}

func lineKey(productID, size, color string) string {
	return productID + "|" + size + "|" + color
}

type memInventory struct {
	mu        sync.Mutex
	base      map[string]int
	variants  map[string]int
	hasVars   map[string]bool
	applied   map[string]bool
	failLines map[string]bool
}

func newMemInventory() *memInventory {
	return &memInventory{
		base:      make(map[string]int),
		variants:  make(map[string]int),
		hasVars:   make(map[string]bool),
		applied:   make(map[string]bool),
		failLines: make(map[string]bool),
	}
}

func (m *memInventory) setBase(productID string, stock int) {
	m.base[productID] = stock
}

func (m *memInventory) setVariant(productID, size, color string, stock int) {
	m.variants[lineKey(productID, size, color)] = stock
	m.hasVars[productID] = true
}

func (m *memInventory) stock(productID, size, color string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size != "" || color != "" {
		return m.variants[lineKey(productID, size, color)]
	}
	return m.base[productID]
}

func (m *memInventory) CheckAvailable(ctx context.Context, lines []entity.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range lines {
		if m.hasVars[line.ProductID] && (line.Size != "" || line.Color != "") {
			stock, ok := m.variants[lineKey(line.ProductID, line.Size, line.Color)]
			if !ok || stock < line.Quantity {
				return &entity.InsufficientStockError{
					ProductID: line.ProductID, Size: line.Size, Color: line.Color,
					Available: stock, Requested: line.Quantity,
				}
			}
			continue
		}
		if m.base[line.ProductID] < line.Quantity {
			return &entity.InsufficientStockError{
				ProductID: line.ProductID,
				Available: m.base[line.ProductID], Requested: line.Quantity,
			}
		}
	}
	return nil
}

func (m *memInventory) Decrement(ctx context.Context, orderID string, lines []entity.StockLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range lines {
		key := lineKey(line.ProductID, line.Size, line.Color)
		if m.failLines[key] {
			continue // simulated per-line failure, logged and skipped
		}
		appliedKey := orderID + "|" + key
		if m.applied[appliedKey] {
			continue
		}
		m.applied[appliedKey] = true
		if line.Size != "" || line.Color != "" {
			m.variants[key] -= line.Quantity
		} else {
			m.base[line.ProductID] -= line.Quantity
		}
	}
	return nil
}

type memWebhooks struct {
	mu      sync.Mutex
	records []entity.WebhookRecord
	seen    map[string]bool
}

func newMemWebhooks() *memWebhooks {
	return &memWebhooks{seen: make(map[string]bool)}
}

func (m *memWebhooks) Record(ctx context.Context, rec entity.WebhookRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if rec.RemoteEventID == "" {
		return true, nil
	}
	key := rec.Provider + "|" + rec.RemoteEventID
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

type recordPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordPublisher) PublishEvent(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *recordPublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// fakeProvider is a scriptable payment.Provider.
type fakeProvider struct {
	name             string
	calls            []payment.SessionRequest
	rejectCurrencies map[string]bool
	session          payment.Session
	createErr        error
	verifyErr        error
	event            *payment.ProviderEvent
	parseErr         error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.calls = append(f.calls, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.rejectCurrencies[req.Currency] {
		return nil, payment.ErrUnsupportedCurrency
	}
	sess := f.session
	if sess.ID == "" {
		sess.ID = fmt.Sprintf("%s-sess-%d", f.name, len(f.calls))
	}
	return &sess, nil
}

func (f *fakeProvider) VerifyWebhook(body []byte, header http.Header) error {
	return f.verifyErr
}

func (f *fakeProvider) ParseEvent(body []byte) (*payment.ProviderEvent, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

type fakeRates struct {
	rate  float64
	err   error
	calls int
}

func (f *fakeRates) Rate(ctx context.Context, from, to string) (float64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.rate, nil
}
