package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/boloapp/order-service/internal/config"
	"github.com/boloapp/order-service/pkg/logger"
)

// Database wraps the sqlx connection pool.
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New connects to Postgres and configures the pool.
func New(cfg *config.Config, log logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Info("connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{DB: db, logger: log}, nil
}

// Ping checks the connection.
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the pool.
func (d *Database) Close() error {
	return d.DB.Close()
}

// Migrate creates the schema. A dedicated migration tool would own this in a
// larger deployment; table creation at startup is enough for this service.
func (d *Database) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(50) PRIMARY KEY,
		promotion_id VARCHAR(50) NOT NULL,
		promotion JSONB NOT NULL,
		customer_name VARCHAR(200) NOT NULL,
		customer_phone VARCHAR(50) NOT NULL,
		customer_email VARCHAR(200),
		quantity INT NOT NULL,
		total_amount DECIMAL(12, 2) NOT NULL,
		payment_method VARCHAR(20) NOT NULL,
		payment_status VARCHAR(20) NOT NULL,
		order_status VARCHAR(20) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_order_status ON orders(order_status);
	CREATE INDEX IF NOT EXISTS idx_orders_payment_status ON orders(payment_status);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);

	CREATE TABLE IF NOT EXISTS order_history (
		id VARCHAR(50) PRIMARY KEY,
		order_id VARCHAR(50) NOT NULL REFERENCES orders(id),
		change_type VARCHAR(30) NOT NULL,
		previous_value VARCHAR(30) NOT NULL,
		new_value VARCHAR(30) NOT NULL,
		reason TEXT,
		changed_by_id VARCHAR(50) NOT NULL,
		changed_by_name VARCHAR(200) NOT NULL,
		changed_by_role VARCHAR(50) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_history(order_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_order_history_type ON order_history(order_id, change_type);

	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMP,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);

	CREATE TABLE IF NOT EXISTS dead_letters (
		id SERIAL PRIMARY KEY,
		original_message_id BIGINT NOT NULL,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		error_message TEXT NOT NULL,
		retry_count INT NOT NULL DEFAULT 0,
		last_retry_at TIMESTAMP,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		resolved_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_dead_letters_status ON dead_letters(status);
	`

	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("database migrations completed")
	return nil
}
