package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates the inventory ledger backed by Postgres.
func NewInventoryRepository(db *sql.DB) repository.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) CheckAvailable(ctx context.Context, lines []entity.StockLine) error {
	for _, line := range lines {
		var variantCount int
		err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM product_variants WHERE product_id = $1", line.ProductID,
		).Scan(&variantCount)
		if err != nil {
			return fmt.Errorf("failed to count variants for %s: %w", line.ProductID, err)
		}

		if variantCount > 0 && (line.Size != "" || line.Color != "") {
			var stock int
			err := r.db.QueryRowContext(ctx,
				"SELECT stock FROM product_variants WHERE product_id = $1 AND size = $2 AND color = $3",
				line.ProductID, line.Size, line.Color,
			).Scan(&stock)
			if err == sql.ErrNoRows {
				return &entity.InsufficientStockError{
					ProductID: line.ProductID, Size: line.Size, Color: line.Color,
					Available: 0, Requested: line.Quantity,
				}
			}
			if err != nil {
				return fmt.Errorf("failed to query variant stock: %w", err)
			}
			if stock < line.Quantity {
				return &entity.InsufficientStockError{
					ProductID: line.ProductID, Size: line.Size, Color: line.Color,
					Available: stock, Requested: line.Quantity,
				}
			}
			continue
		}

		var stock int
		err = r.db.QueryRowContext(ctx,
			"SELECT stock FROM products WHERE id = $1", line.ProductID,
		).Scan(&stock)
		if err == sql.ErrNoRows {
			return &entity.InsufficientStockError{
				ProductID: line.ProductID, Available: 0, Requested: line.Quantity,
			}
		}
		if err != nil {
			return fmt.Errorf("failed to query product stock: %w", err)
		}
		if stock < line.Quantity {
			return &entity.InsufficientStockError{
				ProductID: line.ProductID, Available: stock, Requested: line.Quantity,
			}
		}
	}
	return nil
}

// Decrement applies each line at most once per order. The applied-set insert
// and the stock update share a transaction, so a concurrent duplicate
// delivery either sees the marker row or loses the insert race. A line
// whose variant no longer exists is logged and skipped; by the time this
// runs payment has already been confirmed, so the other lines must still
// land.
func (r *inventoryRepository) Decrement(ctx context.Context, orderID string, lines []entity.StockLine) error {
	for _, line := range lines {
		if err := r.decrementLine(ctx, orderID, line); err != nil {
			slog.Error("Failed to decrement stock line",
				"order_id", orderID, "product_id", line.ProductID,
				"size", line.Size, "color", line.Color, "err", err)
		}
	}
	return nil
}

func (r *inventoryRepository) decrementLine(ctx context.Context, orderID string, line entity.StockLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var applied bool
	err = tx.QueryRowContext(ctx,
		"INSERT INTO inventory_applied (order_id, product_id, size, color, quantity) VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING RETURNING true",
		orderID, line.ProductID, line.Size, line.Color, line.Quantity,
	).Scan(&applied)
	if err == sql.ErrNoRows {
		// Marker already present: this line was decremented by an earlier
		// delivery of the same event.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert applied marker: %w", err)
	}

	var newStock int
	if line.Size != "" || line.Color != "" {
		err = tx.QueryRowContext(ctx,
			"UPDATE product_variants SET stock = stock - $1 WHERE product_id = $2 AND size = $3 AND color = $4 RETURNING stock",
			line.Quantity, line.ProductID, line.Size, line.Color,
		).Scan(&newStock)
	} else {
		err = tx.QueryRowContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2 RETURNING stock",
			line.Quantity, line.ProductID,
		).Scan(&newStock)
	}
	if err == sql.ErrNoRows {
		// Variant/product deleted since the order was placed. Keep the
		// marker so redeliveries don't retry a dead line forever.
		slog.Warn("Stock target no longer exists, skipping line",
			"order_id", orderID, "product_id", line.ProductID,
			"size", line.Size, "color", line.Color)
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}

	if newStock < 0 {
		// Oversell from the optimistic checkout race. Stock stays negative
		// so the deficit remains visible as a backorder.
		slog.Warn("Stock went negative (backorder)",
			"order_id", orderID, "product_id", line.ProductID,
			"size", line.Size, "color", line.Color, "stock", newStock)
	}

	return tx.Commit()
}
