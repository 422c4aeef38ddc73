package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	dbcommon "storefront/internal/adapters/out/db/common"
	paymentdom "storefront/internal/domain/payment"
)

// PaymentRepositoryPG stores the PaymentIntent behind each gateway order id.
type PaymentRepositoryPG struct {
	DB *sql.DB
}

func NewPaymentRepositoryPG(db *sql.DB) *PaymentRepositoryPG {
	return &PaymentRepositoryPG{DB: db}
}

// ============================================================
// paymentdom.IntentRepository
// ============================================================

func (r *PaymentRepositoryPG) SaveIntent(ctx context.Context, gatewayOrderID string, in paymentdom.PaymentIntent) error {
	id := strings.TrimSpace(gatewayOrderID)
	if id == "" {
		return paymentdom.NewValidationError("orderID", "is required")
	}
	run := dbcommon.GetRunner(ctx, r.DB)

	items, err := json.Marshal(in.Items)
	if err != nil {
		return err
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `
INSERT INTO payment_intents (
  gateway_order_id,
  amount_cents,
  currency,
  items,
  created_at
) VALUES (
  $1,$2,$3,$4,$5
)
ON CONFLICT (gateway_order_id) DO NOTHING
`
	res, err := run.ExecContext(ctx, q, id, int64(in.Amount), in.Currency, string(items), dbcommon.ToDBTime(createdAt))
	if err != nil {
		if dbcommon.IsUniqueViolation(err) {
			return paymentdom.ErrConflict
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return paymentdom.ErrConflict
	}
	return nil
}

func (r *PaymentRepositoryPG) GetIntent(ctx context.Context, gatewayOrderID string) (paymentdom.PaymentIntent, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	const q = `
SELECT
  amount_cents,
  currency,
  items,
  created_at
FROM payment_intents
WHERE gateway_order_id = $1
`
	var (
		amount    int64
		currency  string
		items     string
		createdAt time.Time
	)
	err := run.QueryRowContext(ctx, q, strings.TrimSpace(gatewayOrderID)).Scan(&amount, &currency, &items, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return paymentdom.PaymentIntent{}, paymentdom.ErrIntentNotFound
		}
		return paymentdom.PaymentIntent{}, err
	}

	in := paymentdom.PaymentIntent{
		Amount:    paymentdom.Money(amount),
		Currency:  currency,
		CreatedAt: createdAt.UTC(),
	}
	if err := json.Unmarshal([]byte(items), &in.Items); err != nil {
		return paymentdom.PaymentIntent{}, err
	}
	return in, nil
}
