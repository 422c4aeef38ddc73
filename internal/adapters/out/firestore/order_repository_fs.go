// backend/internal/adapters/out/firestore/order_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	orderdom "storefront/internal/domain/order"
)

// OrderRepositoryFS indexes recorded orders by gateway transaction id.
//
// ✅ docId = transactionId
type OrderRepositoryFS struct {
	Client *firestore.Client
}

func NewOrderRepositoryFS(client *firestore.Client) *OrderRepositoryFS {
	return &OrderRepositoryFS{Client: client}
}

func (r *OrderRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("order_records")
}

type orderRecordDoc struct {
	OrderID        int64                `firestore:"orderId"`
	Number         string               `firestore:"number"`
	GatewayOrderID string               `firestore:"gatewayOrderId"`
	CaptureStatus  string               `firestore:"captureStatus"`
	Record         orderdom.OrderRecord `firestore:"record"`
	CreatedAt      time.Time            `firestore:"createdAt"`
}

// ========================
// orderdom.IndexRepository
// ========================

func (r *OrderRepositoryFS) GetByTransactionID(ctx context.Context, transactionID string) (orderdom.OrderRecord, error) {
	if r == nil || r.Client == nil {
		return orderdom.OrderRecord{}, errors.New("firestore client is nil")
	}

	id := strings.TrimSpace(transactionID)
	if id == "" {
		return orderdom.OrderRecord{}, orderdom.ErrNotFound
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return orderdom.OrderRecord{}, orderdom.ErrNotFound
		}
		return orderdom.OrderRecord{}, err
	}

	var d orderRecordDoc
	if err := snap.DataTo(&d); err != nil {
		return orderdom.OrderRecord{}, err
	}
	rec := d.Record
	if rec.TransactionID == "" {
		rec.TransactionID = snap.Ref.ID
	}
	return rec, nil
}

func (r *OrderRepositoryFS) Save(ctx context.Context, rec orderdom.OrderRecord) error {
	if r == nil || r.Client == nil {
		return errors.New("firestore client is nil")
	}

	id := strings.TrimSpace(rec.TransactionID)
	if id == "" {
		return errors.New("order index: transaction id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.col().Doc(id).Create(ctx, orderRecordDoc{
		OrderID:        rec.ID,
		Number:         rec.Number,
		GatewayOrderID: rec.GatewayOrderID,
		CaptureStatus:  rec.CaptureStatus,
		Record:         rec,
		CreatedAt:      rec.CreatedAt.UTC(),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return orderdom.ErrConflict
		}
		return err
	}
	return nil
}
