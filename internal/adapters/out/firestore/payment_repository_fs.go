// backend/internal/adapters/out/firestore/payment_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	paymentdom "storefront/internal/domain/payment"
)

// PaymentRepositoryFS stores the PaymentIntent behind each gateway order.
//
// ✅ docId = gatewayOrderId
type PaymentRepositoryFS struct {
	Client *firestore.Client
}

func NewPaymentRepositoryFS(client *firestore.Client) *PaymentRepositoryFS {
	return &PaymentRepositoryFS{Client: client}
}

func (r *PaymentRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("payment_intents")
}

type intentItemDoc struct {
	ProductRef     string `firestore:"productRef"`
	Name           string `firestore:"name"`
	Quantity       int    `firestore:"quantity"`
	UnitPriceCents int64  `firestore:"unitPriceCents"`
}

type intentDoc struct {
	AmountCents int64           `firestore:"amountCents"`
	Currency    string          `firestore:"currency"`
	Items       []intentItemDoc `firestore:"items"`
	CreatedAt   time.Time       `firestore:"createdAt"`
}

// ============================================================
// paymentdom.IntentRepository
// ============================================================

func (r *PaymentRepositoryFS) SaveIntent(ctx context.Context, gatewayOrderID string, in paymentdom.PaymentIntent) error {
	if r == nil || r.Client == nil {
		return errors.New("firestore client is nil")
	}

	id := strings.TrimSpace(gatewayOrderID)
	if id == "" {
		return paymentdom.NewValidationError("orderID", "is required")
	}

	d := intentDoc{
		AmountCents: int64(in.Amount),
		Currency:    in.Currency,
		Items:       make([]intentItemDoc, 0, len(in.Items)),
		CreatedAt:   in.CreatedAt.UTC(),
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	for _, it := range in.Items {
		d.Items = append(d.Items, intentItemDoc{
			ProductRef:     it.ProductRef,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: int64(it.UnitPrice),
		})
	}

	if _, err := r.col().Doc(id).Create(ctx, d); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return paymentdom.ErrConflict
		}
		return err
	}
	return nil
}

func (r *PaymentRepositoryFS) GetIntent(ctx context.Context, gatewayOrderID string) (paymentdom.PaymentIntent, error) {
	if r == nil || r.Client == nil {
		return paymentdom.PaymentIntent{}, errors.New("firestore client is nil")
	}

	id := strings.TrimSpace(gatewayOrderID)
	if id == "" {
		return paymentdom.PaymentIntent{}, paymentdom.ErrIntentNotFound
	}

	snap, err := r.col().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return paymentdom.PaymentIntent{}, paymentdom.ErrIntentNotFound
		}
		return paymentdom.PaymentIntent{}, err
	}

	var d intentDoc
	if err := snap.DataTo(&d); err != nil {
		return paymentdom.PaymentIntent{}, err
	}

	in := paymentdom.PaymentIntent{
		Amount:    paymentdom.Money(d.AmountCents),
		Currency:  d.Currency,
		Items:     make([]paymentdom.LineItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt.UTC(),
	}
	for _, it := range d.Items {
		in.Items = append(in.Items, paymentdom.LineItem{
			ProductRef: it.ProductRef,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  paymentdom.Money(it.UnitPriceCents),
		})
	}
	return in, nil
}
