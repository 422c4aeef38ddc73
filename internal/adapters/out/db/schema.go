// backend/internal/adapters/out/db/schema.go
package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is portable between PostgreSQL (lib/pq) and SQLite (tests):
// - money in BIGINT minor units
// - TIMESTAMP columns always written in UTC
// - idempotency key as PRIMARY KEY, inserts use ON CONFLICT DO NOTHING
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reconciliation_entries (
  transaction_id      TEXT PRIMARY KEY,
  gateway_order_id    TEXT NOT NULL,
  amount_cents        BIGINT NOT NULL,
  currency            TEXT NOT NULL,
  outcome             TEXT NOT NULL,
  detail              TEXT,
  order_record_id     BIGINT,
  order_record_number TEXT,
  created_at          TIMESTAMP NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_reconciliation_gateway_order ON reconciliation_entries (gateway_order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reconciliation_outcome_created ON reconciliation_entries (outcome, created_at)`,
	`CREATE TABLE IF NOT EXISTS order_records (
  transaction_id   TEXT PRIMARY KEY,
  order_id         BIGINT NOT NULL,
  number           TEXT NOT NULL,
  gateway_order_id TEXT NOT NULL,
  capture_status   TEXT,
  customer_id      BIGINT,
  payload          TEXT NOT NULL,
  created_at       TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
  gateway_order_id TEXT PRIMARY KEY,
  amount_cents     BIGINT NOT NULL,
  currency         TEXT NOT NULL,
  items            TEXT NOT NULL,
  created_at       TIMESTAMP NOT NULL
)`,
}

// EnsureSchema creates the checkout tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: ensure schema (stmt %d): %w", i, err)
		}
	}
	return nil
}
