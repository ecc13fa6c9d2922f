package postgres

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return db, nil
}

func migrateDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			stock INT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS product_variants (
			product_id TEXT NOT NULL REFERENCES products(id),
			size TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			stock INT NOT NULL DEFAULT 0,
			PRIMARY KEY (product_id, size, color)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'PENDING',
			customer_name TEXT NOT NULL DEFAULT '',
			customer_email TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			ship_line1 TEXT NOT NULL DEFAULT '',
			ship_line2 TEXT NOT NULL DEFAULT '',
			ship_city TEXT NOT NULL DEFAULT '',
			ship_region TEXT NOT NULL DEFAULT '',
			ship_postal_code TEXT NOT NULL DEFAULT '',
			ship_country TEXT NOT NULL DEFAULT '',
			subtotal BIGINT NOT NULL DEFAULT 0,
			shipping_fee BIGINT NOT NULL DEFAULT 0,
			total BIGINT NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'EUR',
			payment_method TEXT NOT NULL DEFAULT '',
			provider_ref TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_provider_ref ON orders (provider_ref) WHERE provider_ref <> '';

		CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			unit_price BIGINT NOT NULL DEFAULT 0,
			quantity INT NOT NULL DEFAULT 1,
			size TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS payment_instructions (
			id SERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			provider TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			entity TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			barcode TEXT NOT NULL DEFAULT '',
			issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS inventory_applied (
			order_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			size TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			quantity INT NOT NULL DEFAULT 0,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (order_id, product_id, size, color)
		);

		CREATE TABLE IF NOT EXISTS webhook_events (
			id SERIAL PRIMARY KEY,
			provider TEXT NOT NULL,
			remote_event_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL DEFAULT '',
			payload BYTEA,
			signature_valid BOOLEAN NOT NULL DEFAULT FALSE,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS ux_webhook_events_provider_event
			ON webhook_events (provider, remote_event_id) WHERE remote_event_id <> '';
	`)
	return err
}
