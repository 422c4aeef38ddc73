// backend/internal/adapters/out/db/reconciliation_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	dbcommon "storefront/internal/adapters/out/db/common"
	paymentdom "storefront/internal/domain/payment"
	recondom "storefront/internal/domain/reconciliation"
)

// ReconciliationRepositoryPG is the SQL capture ledger (append-only).
type ReconciliationRepositoryPG struct {
	DB *sql.DB
}

func NewReconciliationRepositoryPG(db *sql.DB) *ReconciliationRepositoryPG {
	return &ReconciliationRepositoryPG{DB: db}
}

const reconciliationColumns = `
  transaction_id,
  gateway_order_id,
  amount_cents,
  currency,
  outcome,
  detail,
  order_record_id,
  order_record_number,
  created_at`

// ============================================================
// recondom.LedgerPort
// ============================================================

// Append inserts e once. A second insert for the same transaction id is a no-op
// that returns the stored row with ErrConflict.
func (r *ReconciliationRepositoryPG) Append(ctx context.Context, e recondom.Entry) (recondom.Entry, error) {
	if err := e.Validate(); err != nil {
		return recondom.Entry{}, err
	}
	run := dbcommon.GetRunner(ctx, r.DB)

	e.TransactionID = strings.TrimSpace(e.TransactionID)
	e.CreatedAt = e.CreatedAt.UTC()

	const q = `
INSERT INTO reconciliation_entries (` + reconciliationColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (transaction_id) DO NOTHING
`
	var orderID any
	if e.OrderRecordID > 0 {
		orderID = e.OrderRecordID
	}

	res, err := run.ExecContext(ctx, q,
		e.TransactionID,
		strings.TrimSpace(e.GatewayOrderID),
		int64(e.Amount),
		strings.TrimSpace(e.Currency),
		string(e.Outcome),
		dbcommon.ToDBText(e.Detail),
		orderID,
		dbcommon.ToDBText(e.OrderRecordNumber),
		dbcommon.ToDBTime(e.CreatedAt),
	)
	if err != nil {
		if dbcommon.IsUniqueViolation(err) {
			return r.conflict(ctx, e.TransactionID)
		}
		return recondom.Entry{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return recondom.Entry{}, err
	}
	if n == 0 {
		return r.conflict(ctx, e.TransactionID)
	}
	return e, nil
}

func (r *ReconciliationRepositoryPG) conflict(ctx context.Context, txnID string) (recondom.Entry, error) {
	stored, err := r.GetByTransactionID(ctx, txnID)
	if err != nil {
		return recondom.Entry{}, err
	}
	return stored, recondom.ErrConflict
}

func (r *ReconciliationRepositoryPG) GetByTransactionID(ctx context.Context, transactionID string) (recondom.Entry, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	const q = `SELECT` + reconciliationColumns + `
FROM reconciliation_entries
WHERE transaction_id = $1
`
	e, err := scanEntry(run.QueryRowContext(ctx, q, strings.TrimSpace(transactionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return recondom.Entry{}, recondom.ErrNotFound
		}
		return recondom.Entry{}, err
	}
	return e, nil
}

// GetByGatewayOrderID returns the earliest entry for the gateway order.
func (r *ReconciliationRepositoryPG) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (recondom.Entry, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	const q = `SELECT` + reconciliationColumns + `
FROM reconciliation_entries
WHERE gateway_order_id = $1
ORDER BY created_at ASC
LIMIT 1
`
	e, err := scanEntry(run.QueryRowContext(ctx, q, strings.TrimSpace(gatewayOrderID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return recondom.Entry{}, recondom.ErrNotFound
		}
		return recondom.Entry{}, err
	}
	return e, nil
}

// List returns entries newest first.
func (r *ReconciliationRepositoryPG) List(ctx context.Context, filter recondom.Filter, page recondom.Page) (recondom.PageResult, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	where := []string{}
	args := []any{}
	if filter.Outcome != "" {
		dbcommon.AppendCond(&where, &args, "outcome = $%d", string(filter.Outcome))
	}
	if filter.CreatedFrom != nil {
		dbcommon.AppendCond(&where, &args, "created_at >= $%d", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		dbcommon.AppendCond(&where, &args, "created_at < $%d", filter.CreatedTo.UTC())
	}
	whereSQL := dbcommon.WhereClause(where)

	pageNum, perPage, offset := dbcommon.NormalizePage(page.Number, page.PerPage, 50, 500)

	total, err := dbcommon.QueryCount(ctx, run, "SELECT COUNT(*) FROM reconciliation_entries "+whereSQL, args...)
	if err != nil {
		return recondom.PageResult{}, err
	}
	if total == 0 {
		return recondom.PageResult{
			Items:      []recondom.Entry{},
			TotalCount: 0,
			TotalPages: 0,
			Page:       pageNum,
			PerPage:    perPage,
		}, nil
	}

	listArgs := append(append([]any{}, args...), perPage, offset)
	q := `SELECT` + reconciliationColumns + `
FROM reconciliation_entries
` + whereSQL + `
ORDER BY created_at DESC, transaction_id ASC
LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)

	rows, err := run.QueryContext(ctx, q, listArgs...)
	if err != nil {
		return recondom.PageResult{}, err
	}
	defer rows.Close()

	items := make([]recondom.Entry, 0, perPage)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return recondom.PageResult{}, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return recondom.PageResult{}, err
	}

	return recondom.PageResult{
		Items:      items,
		TotalCount: total,
		TotalPages: dbcommon.ComputeTotalPages(total, perPage),
		Page:       pageNum,
		PerPage:    perPage,
	}, nil
}

// ============================================================
// scan
// ============================================================

func scanEntry(s dbcommon.RowScanner) (recondom.Entry, error) {
	var (
		txnID, gatewayOrderID, currency, outcome string
		amount                                   int64
		detail, orderNumber                      sql.NullString
		orderID                                  sql.NullInt64
		createdAt                                time.Time
	)
	if err := s.Scan(
		&txnID,
		&gatewayOrderID,
		&amount,
		&currency,
		&outcome,
		&detail,
		&orderID,
		&orderNumber,
		&createdAt,
	); err != nil {
		return recondom.Entry{}, err
	}

	e := recondom.Entry{
		TransactionID:     txnID,
		GatewayOrderID:    gatewayOrderID,
		Amount:            paymentdom.Money(amount),
		Currency:          currency,
		Outcome:           recondom.Outcome(outcome),
		Detail:            dbcommon.FromNullString(detail),
		OrderRecordNumber: dbcommon.FromNullString(orderNumber),
		CreatedAt:         createdAt.UTC(),
	}
	if orderID.Valid {
		e.OrderRecordID = orderID.Int64
	}
	return e, nil
}
