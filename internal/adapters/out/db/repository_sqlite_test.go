package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
	recondom "storefront/internal/domain/reconciliation"
)

// openTestDB opens a file-backed SQLite database with the checkout schema.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "checkout.db")+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, EnsureSchema(context.Background(), db))
	// idempotent
	require.NoError(t, EnsureSchema(context.Background(), db))
	return db
}

func entryAt(txn, outcome string, at time.Time) recondom.Entry {
	e := recondom.Entry{
		TransactionID:  txn,
		GatewayOrderID: "ORD-" + txn,
		Amount:         paymentdom.MustMoney("150.00"),
		Currency:       "BRL",
		Outcome:        recondom.Outcome(outcome),
		CreatedAt:      at,
	}
	if e.Outcome == recondom.OutcomeOrderRecorded {
		e.OrderRecordID = 900
		e.OrderRecordNumber = "#900"
	} else {
		e.Detail = "order_record_failed: 503"
	}
	return e
}

func TestLedgerAppendOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewReconciliationRepositoryPG(openTestDB(t))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := entryAt("TXN-1", "ORDER_RECORDED", at)
	got, err := repo.Append(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// a second append never overwrites the first
	second := entryAt("TXN-1", "ORDER_RECORD_FAILED", at.Add(time.Minute))
	stored, err := repo.Append(ctx, second)
	assert.True(t, errors.Is(err, recondom.ErrConflict))
	assert.Equal(t, recondom.OutcomeOrderRecorded, stored.Outcome)

	read, err := repo.GetByTransactionID(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-TXN-1", read.GatewayOrderID)
	assert.Equal(t, paymentdom.MustMoney("150.00"), read.Amount)
	assert.Equal(t, int64(900), read.OrderRecordID)
	assert.Equal(t, "#900", read.OrderRecordNumber)
	assert.True(t, at.Equal(read.CreatedAt))

	byOrder, err := repo.GetByGatewayOrderID(ctx, "ORD-TXN-1")
	require.NoError(t, err)
	assert.Equal(t, "TXN-1", byOrder.TransactionID)

	_, err = repo.GetByTransactionID(ctx, "missing")
	assert.True(t, errors.Is(err, recondom.ErrNotFound))
}

func TestLedgerAppendRejectsInvalid(t *testing.T) {
	repo := NewReconciliationRepositoryPG(openTestDB(t))

	_, err := repo.Append(context.Background(), recondom.Entry{TransactionID: "T", Outcome: "PAID", CreatedAt: time.Now()})
	assert.True(t, errors.Is(err, recondom.ErrInvalidOutcome))
}

func TestLedgerConcurrentAppendSingleRow(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewReconciliationRepositoryPG(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Append(ctx, entryAt("TXN-RACE", "ORDER_RECORD_FAILED", at)); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM reconciliation_entries WHERE transaction_id = 'TXN-RACE'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestLedgerList(t *testing.T) {
	ctx := context.Background()
	repo := NewReconciliationRepositoryPG(openTestDB(t))
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, o := range []string{"ORDER_RECORDED", "ORDER_RECORD_FAILED", "ORDER_RECORD_FAILED", "ORDER_RECORDED", "ORDER_RECORD_FAILED"} {
		_, err := repo.Append(ctx, entryAt("TXN-"+string(rune('A'+i)), o, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, recondom.Filter{}, recondom.Page{Number: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, all.TotalCount)
	assert.Equal(t, 3, all.TotalPages)
	require.Len(t, all.Items, 2)
	assert.Equal(t, "TXN-E", all.Items[0].TransactionID)
	assert.Equal(t, "TXN-D", all.Items[1].TransactionID)

	pending, err := repo.List(ctx, recondom.Filter{Outcome: recondom.OutcomeOrderRecordFailed}, recondom.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, pending.TotalCount)
	for _, e := range pending.Items {
		assert.Equal(t, recondom.OutcomeOrderRecordFailed, e.Outcome)
		assert.Zero(t, e.OrderRecordID)
	}

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	window, err := repo.List(ctx, recondom.Filter{CreatedFrom: &from, CreatedTo: &to}, recondom.Page{})
	require.NoError(t, err)
	require.Len(t, window.Items, 2)
	assert.Equal(t, "TXN-C", window.Items[0].TransactionID)
	assert.Equal(t, "TXN-B", window.Items[1].TransactionID)

	empty, err := repo.List(ctx, recondom.Filter{Outcome: recondom.OutcomeOrderRecorded, CreatedFrom: &to}, recondom.Page{Number: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, empty.TotalCount)
}

func TestOrderIndexSaveOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepositoryPG(openTestDB(t))

	_, err := repo.GetByTransactionID(ctx, "TXN-1")
	assert.True(t, errors.Is(err, orderdom.ErrNotFound))

	rec := orderdom.OrderRecord{
		ID:             900,
		Number:         "#900",
		TransactionID:  "TXN-1",
		GatewayOrderID: "ORD-1",
		CaptureStatus:  "COMPLETED",
		CustomerID:     12,
		Shipping:       orderdom.Address{FirstName: "Ana", City: "Recife", Country: "BR"},
		Lines:          []orderdom.Line{{ProductID: 10, Quantity: 2, SelectedSize: "M"}},
		ShippingLines:  []orderdom.ShippingLine{{MethodID: "flat_rate", MethodTitle: "Shipping", Total: 2500}},
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Save(ctx, rec))

	dup := rec
	dup.ID = 901
	assert.True(t, errors.Is(repo.Save(ctx, dup), orderdom.ErrConflict))

	got, err := repo.GetByTransactionID(ctx, " TXN-1 ")
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.ID)
	assert.Equal(t, "Recife", got.Shipping.City)
	assert.Equal(t, rec.Lines, got.Lines)
	assert.Equal(t, rec.ShippingLines, got.ShippingLines)

	assert.Error(t, repo.Save(ctx, orderdom.OrderRecord{ID: 1}))
}

func TestIntentSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepositoryPG(openTestDB(t))

	in := paymentdom.PaymentIntent{
		Amount:    paymentdom.MustMoney("150.00"),
		Currency:  "BRL",
		Items:     []paymentdom.LineItem{{Name: "Camiseta", Quantity: 2, UnitPrice: paymentdom.MustMoney("75.00")}},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveIntent(ctx, "ORD-1", in))
	assert.True(t, errors.Is(repo.SaveIntent(ctx, "ORD-1", in), paymentdom.ErrConflict))

	got, err := repo.GetIntent(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, in.Amount, got.Amount)
	assert.Equal(t, in.Items, got.Items)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.GetIntent(ctx, "ORD-404")
	assert.True(t, errors.Is(err, paymentdom.ErrIntentNotFound))

	var ve *paymentdom.ValidationError
	assert.True(t, errors.As(repo.SaveIntent(ctx, " ", in), &ve))
}
