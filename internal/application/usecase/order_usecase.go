// backend/internal/application/usecase/order_usecase.go
package usecase

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
)

const (
	backendPaymentMethod      = "paypal"
	backendPaymentMethodTitle = "PayPal"
	backendPaidStatus         = "processing"
)

// OrderUsecase records a captured payment as a commerce-backend order.
//
// ✅ idempotent on gateway transaction id:
// - the local index is read first; a hit never reaches the backend
// - the backend request also carries the transaction id as Idempotency-Key
type OrderUsecase struct {
	backend orderdom.BackendPort
	index   orderdom.IndexRepository
}

func NewOrderUsecase(backend orderdom.BackendPort, index orderdom.IndexRepository) *OrderUsecase {
	return &OrderUsecase{backend: backend, index: index}
}

// RecordOrder maps the capture + checkout form to a backend order.
// Backend failures come back as *payment.OrderRecordingError.
func (u *OrderUsecase) RecordOrder(ctx context.Context, in orderdom.RecordInput) (orderdom.OrderRecord, error) {
	if err := orderdom.ValidateLines(in.Lines); err != nil {
		return orderdom.OrderRecord{}, err
	}

	txnID := strings.TrimSpace(in.Capture.TransactionID)
	if txnID == "" {
		return orderdom.OrderRecord{}, paymentdom.NewValidationError("transactionId", "is required")
	}
	if u == nil || u.backend == nil {
		return orderdom.OrderRecord{}, &paymentdom.OrderRecordingError{TransactionID: txnID, Err: errors.New("order backend is nil")}
	}

	// 1) index first
	if u.index != nil {
		existing, err := u.index.GetByTransactionID(ctx, txnID)
		switch {
		case err == nil:
			log.Printf("[order_usecase] already recorded txnId=%s orderId=%d", txnID, existing.ID)
			return existing, nil
		case errors.Is(err, orderdom.ErrNotFound):
		default:
			// the backend idempotency key still protects against duplicates
			log.Printf("[order_usecase] WARN index read failed txnId=%s err=%v", txnID, err)
		}
	}

	// 2) backend create
	req := BuildBackendOrderRequest(in)
	rec, err := u.backend.CreateOrder(ctx, req)
	if err != nil {
		var oe *paymentdom.OrderRecordingError
		if !errors.As(err, &oe) {
			err = &paymentdom.OrderRecordingError{TransactionID: txnID, Err: err}
		}
		return orderdom.OrderRecord{}, err
	}

	rec.TransactionID = txnID
	rec.GatewayOrderID = strings.TrimSpace(in.Capture.GatewayOrderID)
	rec.CaptureStatus = in.Capture.CaptureStatus
	rec.CustomerID = in.CustomerID
	rec.Billing = req.Billing
	rec.Shipping = req.Shipping
	rec.Lines = append([]orderdom.Line(nil), in.Lines...)
	rec.ShippingLines = in.BuildShippingLines()

	// 3) index save (conflict -> someone else won; return theirs)
	if u.index != nil {
		if err := u.index.Save(ctx, rec); err != nil {
			if errors.Is(err, orderdom.ErrConflict) {
				if winner, gerr := u.index.GetByTransactionID(ctx, txnID); gerr == nil {
					return winner, nil
				}
			} else {
				log.Printf("[order_usecase] WARN index save failed txnId=%s orderId=%d err=%v", txnID, rec.ID, err)
			}
		}
	}

	log.Printf("[order_usecase] OK recorded txnId=%s orderId=%d number=%s shippingLines=%d",
		txnID, rec.ID, rec.Number, len(rec.ShippingLines),
	)
	return rec, nil
}

// BuildBackendOrderRequest is the pure mapping from RecordInput to the backend payload.
func BuildBackendOrderRequest(in orderdom.RecordInput) orderdom.BackendOrderRequest {
	items := make([]orderdom.BackendLineItem, 0, len(in.Lines))
	for _, l := range in.Lines {
		li := orderdom.BackendLineItem{
			ProductID:   l.ProductID,
			VariationID: l.VariationID,
			Quantity:    l.Quantity,
		}
		if v := strings.TrimSpace(l.SelectedSize); v != "" {
			li.MetaData = append(li.MetaData, orderdom.MetaData{Key: orderdom.ItemMetaSize, Value: v})
		}
		if v := strings.TrimSpace(l.SelectedColor); v != "" {
			li.MetaData = append(li.MetaData, orderdom.MetaData{Key: orderdom.ItemMetaColor, Value: v})
		}
		items = append(items, li)
	}

	lines := in.BuildShippingLines()
	shipping := make([]orderdom.BackendShippingLine, 0, len(lines))
	for _, s := range lines {
		shipping = append(shipping, orderdom.BackendShippingLine{
			MethodID:    s.MethodID,
			MethodTitle: s.MethodTitle,
			Total:       s.Total.String(),
		})
	}

	currency := in.Capture.Currency
	if currency == "" {
		currency = in.Intent.Currency
	}

	return orderdom.BackendOrderRequest{
		PaymentMethod:      backendPaymentMethod,
		PaymentMethodTitle: backendPaymentMethodTitle,
		SetPaid:            true,
		Status:             backendPaidStatus,
		Currency:           strings.ToUpper(currency),
		TransactionID:      strings.TrimSpace(in.Capture.TransactionID),
		CustomerID:         in.CustomerID,
		Billing:            in.ResolveBilling(),
		Shipping:           in.ResolveShipping(),
		LineItems:          items,
		ShippingLines:      shipping,
		MetaData: []orderdom.MetaData{
			{Key: orderdom.MetaGatewayOrderID, Value: in.Capture.GatewayOrderID},
			{Key: orderdom.MetaGatewayTransactionID, Value: in.Capture.TransactionID},
			{Key: orderdom.MetaGatewayCaptureStatus, Value: in.Capture.CaptureStatus},
		},
	}
}

// orderRef is the short form used in logs and ledger detail.
func orderRef(rec orderdom.OrderRecord) string {
	if rec.Number != "" {
		return rec.Number
	}
	return "#" + strconv.FormatInt(rec.ID, 10)
}
