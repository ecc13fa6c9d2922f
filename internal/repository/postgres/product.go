package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
	"github.com/EduardooSodre/zarife-sub000/internal/repository"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new ProductRepository backed by Postgres.
func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindAll(ctx context.Context) ([]entity.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, price, image_url, category, stock, active FROM products ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []entity.Product
	for rows.Next() {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category, &p.Stock, &p.Active); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, price, image_url, category, stock, active FROM products WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Category, &p.Stock, &p.Active)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", id, err)
	}
	return &p, nil
}

func (r *productRepository) Seed(ctx context.Context, products []entity.Product, variants []entity.ProductVariant) error {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil // already seeded
	}

	for _, p := range products {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO products (id, name, description, price, image_url, category, stock, active) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.Category, p.Stock, p.Active,
		)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
	}

	for _, v := range variants {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO product_variants (product_id, size, color, stock) VALUES ($1, $2, $3, $4)",
			v.ProductID, v.Size, v.Color, v.Stock,
		)
		if err != nil {
			return fmt.Errorf("failed to seed variant for %s: %w", v.ProductID, err)
		}
	}
	return nil
}
