package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SQLiteSchema mirrors the goose migrations for local SQLite runs and tests.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT,
		role TEXT NOT NULL,
		company_name TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		position INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category_id TEXT REFERENCES categories(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		sku TEXT UNIQUE,
		price_cents INTEGER NOT NULL,
		promo_price_cents INTEGER,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		alert_threshold INTEGER NOT NULL DEFAULT 10,
		status TEXT NOT NULL DEFAULT 'draft',
		featured BOOLEAN NOT NULL DEFAULT 0,
		sales_count INTEGER NOT NULL DEFAULT 0,
		rating_sum INTEGER NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0,
		rating_average NUMERIC NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS checkout_groups (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL UNIQUE,
		client_id TEXT NOT NULL REFERENCES users(id),
		total_cents INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		checkout_group_id TEXT NOT NULL REFERENCES checkout_groups(id),
		client_id TEXT NOT NULL REFERENCES users(id),
		vendor_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'pending',
		version INTEGER NOT NULL DEFAULT 1,
		restocked BOOLEAN NOT NULL DEFAULT 0,
		restocked_at DATETIME,
		shipping_address TEXT NOT NULL,
		shipping_city TEXT NOT NULL,
		shipping_postal_code TEXT NOT NULL,
		shipping_country TEXT NOT NULL,
		shipping_phone TEXT NOT NULL,
		subtotal_cents INTEGER NOT NULL,
		delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
		total_cents INTEGER NOT NULL,
		client_note TEXT,
		tracking_number TEXT,
		estimated_delivery_date DATETIME,
		delivered_at DATETIME,
		cancelled_at DATETIME,
		refunded_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		unit_price_cents INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		line_total_cents INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS vendor_stats (
		vendor_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		revenue_cents INTEGER NOT NULL DEFAULT 0,
		units_sold INTEGER NOT NULL DEFAULT 0,
		order_count INTEGER NOT NULL DEFAULT 0,
		cancelled_count INTEGER NOT NULL DEFAULT 0,
		refunded_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		link TEXT,
		recipient_type TEXT NOT NULL,
		target_ids TEXT NOT NULL DEFAULT '{}',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_by TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS notification_receipts (
		id TEXT PRIMARY KEY,
		notification_id TEXT NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		read_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (notification_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		client_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		title TEXT,
		body TEXT NOT NULL,
		approved BOOLEAN NOT NULL DEFAULT 0,
		approved_at DATETIME,
		approved_by TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (client_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// ApplySQLite creates every table in SQLiteSchema.
func ApplySQLite(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range SQLiteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
