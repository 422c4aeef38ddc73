package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	dbcommon "storefront/internal/adapters/out/db/common"
	orderdom "storefront/internal/domain/order"
)

// OrderRepositoryPG indexes recorded orders by gateway transaction id.
// The full OrderRecord is kept as JSON; the key columns are for operators.
type OrderRepositoryPG struct {
	DB *sql.DB
}

func NewOrderRepositoryPG(db *sql.DB) *OrderRepositoryPG {
	return &OrderRepositoryPG{DB: db}
}

// ========================
// orderdom.IndexRepository
// ========================

func (r *OrderRepositoryPG) GetByTransactionID(ctx context.Context, transactionID string) (orderdom.OrderRecord, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	const q = `SELECT payload FROM order_records WHERE transaction_id = $1`

	var payload string
	if err := run.QueryRowContext(ctx, q, strings.TrimSpace(transactionID)).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orderdom.OrderRecord{}, orderdom.ErrNotFound
		}
		return orderdom.OrderRecord{}, err
	}

	var rec orderdom.OrderRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return orderdom.OrderRecord{}, err
	}
	return rec, nil
}

func (r *OrderRepositoryPG) Save(ctx context.Context, rec orderdom.OrderRecord) error {
	txnID := strings.TrimSpace(rec.TransactionID)
	if txnID == "" {
		return errors.New("order index: transaction id is required")
	}
	run := dbcommon.GetRunner(ctx, r.DB)

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO order_records (
  transaction_id,
  order_id,
  number,
  gateway_order_id,
  capture_status,
  customer_id,
  payload,
  created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (transaction_id) DO NOTHING
`
	var customerID any
	if rec.CustomerID > 0 {
		customerID = rec.CustomerID
	}

	res, err := run.ExecContext(ctx, q,
		txnID,
		rec.ID,
		rec.Number,
		strings.TrimSpace(rec.GatewayOrderID),
		dbcommon.ToDBText(rec.CaptureStatus),
		customerID,
		string(payload),
		dbcommon.ToDBTime(rec.CreatedAt),
	)
	if err != nil {
		if dbcommon.IsUniqueViolation(err) {
			return orderdom.ErrConflict
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return orderdom.ErrConflict
	}
	return nil
}
