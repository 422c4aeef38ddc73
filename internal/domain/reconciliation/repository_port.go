// backend/internal/domain/reconciliation/repository_port.go
package reconciliation

import (
	"context"
	"time"
)

// Filter - 検索条件
type Filter struct {
	Outcome     Outcome
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Page - ページ指定
type Page struct {
	Number  int
	PerPage int
}

// PageResult - ページ結果
type PageResult struct {
	Items      []Entry
	TotalCount int
	TotalPages int
	Page       int
	PerPage    int
}

// LedgerPort is the durable append-only capture ledger.
//
// There is intentionally no Update/Delete.
type LedgerPort interface {
	// Append writes e once. If an entry already exists for e.TransactionID it
	// returns the stored entry and ErrConflict, leaving the ledger untouched.
	Append(ctx context.Context, e Entry) (Entry, error)

	GetByTransactionID(ctx context.Context, transactionID string) (Entry, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (Entry, error)
	List(ctx context.Context, filter Filter, page Page) (PageResult, error)
}
