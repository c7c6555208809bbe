package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT PRIMARY KEY,
		upc TEXT NOT NULL DEFAULT '',
		alt_upc TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		meta_title TEXT NOT NULL DEFAULT '',
		meta_description TEXT NOT NULL DEFAULT '',
		priority BIGINT NOT NULL DEFAULT 0,
		date_created TIMESTAMPTZ NOT NULL DEFAULT now(),
		date_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		browsable BOOLEAN NOT NULL DEFAULT TRUE,
		partner_id BIGINT NOT NULL DEFAULT 0,
		weight TEXT NOT NULL DEFAULT '',
		volume TEXT NOT NULL DEFAULT '',
		vessel_id BIGINT,
		brand_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS vessels (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS brands (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT PRIMARY KEY,
		parent_id BIGINT,
		depth INT NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		meta_title TEXT NOT NULL DEFAULT '',
		meta_description TEXT NOT NULL DEFAULT '',
		browsable BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS product_categories (
		product_id BIGINT NOT NULL REFERENCES products (id),
		category_id BIGINT NOT NULL REFERENCES categories (id),
		PRIMARY KEY (product_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS attributes (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		option_group_id BIGINT,
		filter_enabled BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		id BIGINT PRIMARY KEY,
		group_id BIGINT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS attribute_values (
		id BIGINT PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products (id),
		attribute_id BIGINT NOT NULL REFERENCES attributes (id),
		content TEXT NOT NULL DEFAULT '',
		option_id BIGINT REFERENCES options (id)
	)`,
	`CREATE TABLE IF NOT EXISTS attribute_value_options (
		value_id BIGINT NOT NULL REFERENCES attribute_values (id),
		option_id BIGINT NOT NULL REFERENCES options (id),
		PRIMARY KEY (value_id, option_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ranges (
		id BIGINT PRIMARY KEY,
		partner_id BIGINT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		special_price BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS range_products (
		range_id BIGINT NOT NULL REFERENCES ranges (id),
		product_id BIGINT NOT NULL REFERENCES products (id),
		PRIMARY KEY (range_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS wishlists (
		id BIGINT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		key TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS wishlist_lines (
		wishlist_id BIGINT NOT NULL REFERENCES wishlists (id),
		product_id BIGINT NOT NULL REFERENCES products (id),
		PRIMARY KEY (wishlist_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		number TEXT NOT NULL DEFAULT '',
		date_placed TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_records (
		id BIGINT PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products (id),
		partner_id BIGINT NOT NULL DEFAULT 0,
		price NUMERIC(12, 2),
		num_in_stock BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id BIGINT NOT NULL REFERENCES orders (id),
		product_id BIGINT NOT NULL REFERENCES products (id),
		PRIMARY KEY (order_id, product_id)
	)`,
	`CREATE INDEX IF NOT EXISTS products_title_trgm ON products USING gin (title gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS products_meta_title_trgm ON products USING gin (meta_title gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS products_meta_description_trgm ON products USING gin (meta_description gin_trgm_ops)`,
	`CREATE INDEX IF NOT EXISTS attribute_values_attr ON attribute_values (attribute_id, product_id)`,
	`CREATE INDEX IF NOT EXISTS product_categories_cat ON product_categories (category_id)`,
}

// Migrate creates the schema and the pg_trgm extension. Statements are
// idempotent, running it on every start is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
