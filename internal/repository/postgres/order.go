package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new OrderRepository backed by Postgres.
func NewOrderRepository(db *sql.DB) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, status,
			customer_name, customer_email, customer_phone,
			ship_line1, ship_line2, ship_city, ship_region, ship_postal_code, ship_country,
			subtotal, shipping_fee, total, currency,
			payment_method, provider_ref, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		order.ID, string(order.Status),
		order.Customer.Name, order.Customer.Email, order.Customer.Phone,
		order.Shipping.Line1, order.Shipping.Line2, order.Shipping.City,
		order.Shipping.Region, order.Shipping.PostalCode, order.Shipping.Country,
		order.Subtotal, order.ShippingFee, order.Total, order.Currency,
		order.PaymentMethod, order.ProviderRef, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, size, color) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			order.ID, item.ProductID, item.Name, item.UnitPrice, item.Quantity, item.Size, item.Color,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const orderColumns = `
	id, status,
	customer_name, customer_email, customer_phone,
	ship_line1, ship_line2, ship_city, ship_region, ship_postal_code, ship_country,
	subtotal, shipping_fee, total, currency,
	payment_method, provider_ref, created_at, updated_at`

func scanOrder(row *sql.Row) (*entity.Order, error) {
	var o entity.Order
	var status string
	err := row.Scan(
		&o.ID, &status,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Shipping.Line1, &o.Shipping.Line2, &o.Shipping.City,
		&o.Shipping.Region, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.Currency,
		&o.PaymentMethod, &o.ProviderRef, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = entity.OrderStatus(status)
	return &o, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT"+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order %s: %w", id, err)
	}
	if err := r.loadDetails(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) FindByProviderRef(ctx context.Context, ref string) (*entity.Order, error) {
	if ref == "" {
		return nil, repository.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, "SELECT"+orderColumns+" FROM orders WHERE provider_ref = $1", ref)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order by provider ref: %w", err)
	}
	if err := r.loadDetails(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) loadDetails(ctx context.Context, order *entity.Order) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT product_id, name, unit_price, quantity, size, color FROM order_items WHERE order_id = $1 ORDER BY id",
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity, &item.Size, &item.Color); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}

	insRows, err := r.db.QueryContext(ctx,
		"SELECT provider, method, entity, reference, barcode, issued_at FROM payment_instructions WHERE order_id = $1 ORDER BY id",
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query payment instructions: %w", err)
	}
	defer insRows.Close()

	for insRows.Next() {
		var ins entity.PaymentInstruction
		if err := insRows.Scan(&ins.Provider, &ins.Method, &ins.Entity, &ins.Reference, &ins.Barcode, &ins.IssuedAt); err != nil {
			return fmt.Errorf("failed to scan payment instruction: %w", err)
		}
		order.Instructions = append(order.Instructions, ins)
	}
	return insRows.Err()
}

func (r *orderRepository) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, status, total, currency, payment_method, created_at FROM orders ORDER BY created_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []entity.Order
	for rows.Next() {
		var o entity.Order
		var status string
		if err := rows.Scan(&o.ID, &status, &o.Total, &o.Currency, &o.PaymentMethod, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = entity.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateStatus performs the conditional write that serializes concurrent
// reconciler invocations: the row only moves when its current status is in
// the accepted source set.
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, to entity.OrderStatus, from ...entity.OrderStatus) (bool, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}

	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)",
		string(to), id, pq.Array(sources),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *orderRepository) SetProviderRef(ctx context.Context, id, ref string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE orders SET provider_ref = $1, updated_at = NOW() WHERE id = $2",
		ref, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set provider ref: %w", err)
	}
	return nil
}

func (r *orderRepository) SetPaymentMethod(ctx context.Context, id, method string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE orders SET payment_method = $1, updated_at = NOW() WHERE id = $2",
		method, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set payment method: %w", err)
	}
	return nil
}

func (r *orderRepository) AppendInstruction(ctx context.Context, id string, ins entity.PaymentInstruction) error {
	if ins.IssuedAt.IsZero() {
		ins.IssuedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO payment_instructions (order_id, provider, method, entity, reference, barcode, issued_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		id, ins.Provider, ins.Method, ins.Entity, ins.Reference, ins.Barcode, ins.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append payment instruction: %w", err)
	}
	return nil
}
