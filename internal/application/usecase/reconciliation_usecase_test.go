package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentdom "storefront/internal/domain/payment"
	recondom "storefront/internal/domain/reconciliation"
)

func seedLedger(t *testing.T, n int) *memLedger {
	t.Helper()
	l := newMemLedger()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := completedCapture(fmt.Sprintf("TXN-%03d", i), "10.00")
		c.GatewayOrderID = fmt.Sprintf("ORD-%03d", i)
		var (
			e   recondom.Entry
			err error
		)
		if i%2 == 0 {
			e, err = recondom.NewFailed(c, "order_record_failed: 503", base.Add(time.Duration(i)*time.Minute))
		} else {
			e, err = recondom.NewRecorded(c, int64(1000+i), fmt.Sprintf("#%d", 1000+i), base.Add(time.Duration(i)*time.Minute))
		}
		require.NoError(t, err)
		_, err = l.Append(context.Background(), e)
		require.NoError(t, err)
	}
	return l
}

func TestReconciliationGetAndList(t *testing.T) {
	uc := NewReconciliationUsecase(seedLedger(t, 5))

	e, err := uc.Get(context.Background(), " TXN-001 ")
	require.NoError(t, err)
	assert.Equal(t, recondom.OutcomeOrderRecorded, e.Outcome)

	_, err = uc.Get(context.Background(), "TXN-999")
	assert.True(t, IsNotFound(err))
	_, err = uc.Get(context.Background(), "")
	assert.True(t, errors.Is(err, recondom.ErrInvalidTransactionID))

	pending, err := uc.Pending(context.Background(), recondom.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, pending.TotalCount)
	assert.Equal(t, 50, pending.PerPage)
	assert.Equal(t, "TXN-004", pending.Items[0].TransactionID)

	_, err = uc.List(context.Background(), recondom.Filter{Outcome: "PAID"}, recondom.Page{})
	assert.True(t, errors.Is(err, recondom.ErrInvalidOutcome))

	capped, err := uc.List(context.Background(), recondom.Filter{}, recondom.Page{Number: -1, PerPage: 10000})
	require.NoError(t, err)
	assert.Equal(t, 500, capped.PerPage)
	assert.Equal(t, 1, capped.Page)
}

func TestReconciliationExportWalksPages(t *testing.T) {
	sink := &memSink{}
	uc := NewReconciliationUsecase(seedLedger(t, 1203)).WithExportSink(sink)
	uc.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }

	res, err := uc.Export(context.Background(), recondom.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1203, res.Count)
	assert.Len(t, res.Entries, 1203)
	assert.Equal(t, "ALL", res.Filter)
	assert.True(t, strings.HasPrefix(sink.name, "reconciliation/2026-03-02/"), sink.name)
	assert.Equal(t, "gs://recon-bucket/"+sink.name, res.Location)
	assert.Equal(t, "application/json", sink.contentType)

	var snap ExportResult
	require.NoError(t, json.Unmarshal(sink.data, &snap))
	assert.Equal(t, res.ExportID, snap.ExportID)
	assert.Equal(t, 1203, snap.Count)
	assert.Equal(t, paymentdom.MustMoney("10.00"), snap.Entries[0].Amount)
}

func TestReconciliationExportWithoutSink(t *testing.T) {
	uc := NewReconciliationUsecase(seedLedger(t, 4))

	res, err := uc.Export(context.Background(), recondom.Filter{Outcome: recondom.OutcomeOrderRecordFailed})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Empty(t, res.Location)
	assert.Equal(t, "ORDER_RECORD_FAILED", res.Filter)

	_, err = uc.Export(context.Background(), recondom.Filter{Outcome: "nope"})
	assert.True(t, errors.Is(err, recondom.ErrInvalidOutcome))
}

func TestReconciliationExportSinkFailure(t *testing.T) {
	uc := NewReconciliationUsecase(seedLedger(t, 2)).WithExportSink(&memSink{err: errors.New("403 forbidden")})

	_, err := uc.Export(context.Background(), recondom.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconciliation export")
}
