// backend/internal/adapters/out/firestore/reconciliation_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dbcommon "storefront/internal/adapters/out/db/common"
	paymentdom "storefront/internal/domain/payment"
	recondom "storefront/internal/domain/reconciliation"
)

// ReconciliationRepositoryFS is the Firestore capture ledger.
//
// ✅ docId = transactionId
// - Create() fails with AlreadyExists on a second write, so the ledger stays append-only
type ReconciliationRepositoryFS struct {
	Client *firestore.Client
}

func NewReconciliationRepositoryFS(client *firestore.Client) *ReconciliationRepositoryFS {
	return &ReconciliationRepositoryFS{Client: client}
}

func (r *ReconciliationRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("reconciliation_entries")
}

// ============================================================
// recondom.LedgerPort
// ============================================================

func (r *ReconciliationRepositoryFS) Append(ctx context.Context, e recondom.Entry) (recondom.Entry, error) {
	if r == nil || r.Client == nil {
		return recondom.Entry{}, errors.New("firestore client is nil")
	}
	if err := e.Validate(); err != nil {
		return recondom.Entry{}, err
	}

	e.TransactionID = strings.TrimSpace(e.TransactionID)
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := r.col().Doc(e.TransactionID).Create(ctx, entryToDoc(e))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			stored, gerr := r.GetByTransactionID(ctx, e.TransactionID)
			if gerr != nil {
				return recondom.Entry{}, gerr
			}
			return stored, recondom.ErrConflict
		}
		return recondom.Entry{}, err
	}
	return e, nil
}

func (r *ReconciliationRepositoryFS) GetByTransactionID(ctx context.Context, transactionID string) (recondom.Entry, error) {
	if r == nil || r.Client == nil {
		return recondom.Entry{}, errors.New("firestore client is nil")
	}

	id := strings.TrimSpace(transactionID)
	if id == "" {
		return recondom.Entry{}, recondom.ErrNotFound
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return recondom.Entry{}, recondom.ErrNotFound
		}
		return recondom.Entry{}, err
	}
	return docToEntry(snap)
}

func (r *ReconciliationRepositoryFS) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (recondom.Entry, error) {
	if r == nil || r.Client == nil {
		return recondom.Entry{}, errors.New("firestore client is nil")
	}

	id := strings.TrimSpace(gatewayOrderID)
	if id == "" {
		return recondom.Entry{}, recondom.ErrNotFound
	}

	it := r.col().Where("gatewayOrderId", "==", id).Limit(1).Documents(ctx)
	defer it.Stop()

	doc, err := it.Next()
	if err == iterator.Done {
		return recondom.Entry{}, recondom.ErrNotFound
	}
	if err != nil {
		return recondom.Entry{}, err
	}
	return docToEntry(doc)
}

// List: outcome は Firestore 側で絞り、期間はメモリで絞る（複合 index を増やさない）。
func (r *ReconciliationRepositoryFS) List(ctx context.Context, filter recondom.Filter, page recondom.Page) (recondom.PageResult, error) {
	if r == nil || r.Client == nil {
		return recondom.PageResult{}, errors.New("firestore client is nil")
	}

	pageNum, perPage, offset := dbcommon.NormalizePage(page.Number, page.PerPage, 50, 500)

	q := r.col().Query
	if filter.Outcome != "" {
		q = q.Where("outcome", "==", string(filter.Outcome))
	}
	q = q.OrderBy("createdAt", firestore.Desc)

	it := q.Documents(ctx)
	defer it.Stop()

	all := make([]recondom.Entry, 0, 64)
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return recondom.PageResult{}, err
		}
		e, err := docToEntry(doc)
		if err != nil {
			return recondom.PageResult{}, err
		}
		if matchEntryPeriod(e, filter) {
			all = append(all, e)
		}
	}

	total := len(all)
	if total == 0 {
		return recondom.PageResult{
			Items:      []recondom.Entry{},
			TotalCount: 0,
			TotalPages: 0,
			Page:       pageNum,
			PerPage:    perPage,
		}, nil
	}

	if offset > total {
		offset = total
	}
	end := offset + perPage
	if end > total {
		end = total
	}

	return recondom.PageResult{
		Items:      all[offset:end],
		TotalCount: total,
		TotalPages: dbcommon.ComputeTotalPages(total, perPage),
		Page:       pageNum,
		PerPage:    perPage,
	}, nil
}

// ============================================================
// mapping
// ============================================================

func entryToDoc(e recondom.Entry) map[string]any {
	m := map[string]any{
		"transactionId":  e.TransactionID,
		"gatewayOrderId": strings.TrimSpace(e.GatewayOrderID),
		"amountCents":    int64(e.Amount),
		"currency":       e.Currency,
		"outcome":        string(e.Outcome),
		"createdAt":      e.CreatedAt.UTC(),
	}
	if s := strings.TrimSpace(e.Detail); s != "" {
		m["detail"] = s
	}
	if e.OrderRecordID > 0 {
		m["orderRecordId"] = e.OrderRecordID
	}
	if s := strings.TrimSpace(e.OrderRecordNumber); s != "" {
		m["orderRecordNumber"] = s
	}
	return m
}

func docToEntry(doc *firestore.DocumentSnapshot) (recondom.Entry, error) {
	var raw struct {
		TransactionID     string    `firestore:"transactionId"`
		GatewayOrderID    string    `firestore:"gatewayOrderId"`
		AmountCents       int64     `firestore:"amountCents"`
		Currency          string    `firestore:"currency"`
		Outcome           string    `firestore:"outcome"`
		Detail            string    `firestore:"detail"`
		OrderRecordID     int64     `firestore:"orderRecordId"`
		OrderRecordNumber string    `firestore:"orderRecordNumber"`
		CreatedAt         time.Time `firestore:"createdAt"`
	}
	if err := doc.DataTo(&raw); err != nil {
		return recondom.Entry{}, err
	}

	txnID := strings.TrimSpace(raw.TransactionID)
	if txnID == "" {
		txnID = doc.Ref.ID
	}

	return recondom.Entry{
		TransactionID:     txnID,
		GatewayOrderID:    raw.GatewayOrderID,
		Amount:            paymentdom.Money(raw.AmountCents),
		Currency:          raw.Currency,
		Outcome:           recondom.Outcome(raw.Outcome),
		Detail:            raw.Detail,
		OrderRecordID:     raw.OrderRecordID,
		OrderRecordNumber: raw.OrderRecordNumber,
		CreatedAt:         raw.CreatedAt.UTC(),
	}, nil
}

func matchEntryPeriod(e recondom.Entry, f recondom.Filter) bool {
	if f.CreatedFrom != nil && e.CreatedAt.Before(f.CreatedFrom.UTC()) {
		return false
	}
	if f.CreatedTo != nil && !e.CreatedAt.Before(f.CreatedTo.UTC()) {
		return false
	}
	return true
}
