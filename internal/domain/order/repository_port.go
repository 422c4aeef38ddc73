// backend/internal/domain/order/repository_port.go
package order

import "context"

// IndexRepository maps gateway transaction id -> OrderRecord.
// It is the local idempotency guard in front of the commerce backend.
type IndexRepository interface {
	// GetByTransactionID returns ErrNotFound when nothing was recorded yet.
	GetByTransactionID(ctx context.Context, transactionID string) (OrderRecord, error)

	// Save stores rec under rec.TransactionID. A second save for the same
	// transaction id returns ErrConflict and keeps the first record.
	Save(ctx context.Context, rec OrderRecord) error
}

// BackendPort is the commerce backend order-create endpoint.
// Implementations send rec.TransactionID as the backend idempotency key.
type BackendPort interface {
	CreateOrder(ctx context.Context, req BackendOrderRequest) (OrderRecord, error)
}

// MetaData is a backend key/value pair (order- or item-level).
type MetaData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// BackendLineItem is one line item as the commerce backend expects it.
type BackendLineItem struct {
	ProductID   int64      `json:"product_id"`
	VariationID int64      `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity"`
	MetaData    []MetaData `json:"meta_data,omitempty"`
}

// BackendShippingLine is a shipping line with its total already formatted.
type BackendShippingLine struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

// BackendOrderRequest is the payload for the commerce backend order-create call.
type BackendOrderRequest struct {
	PaymentMethod      string                `json:"payment_method"`
	PaymentMethodTitle string                `json:"payment_method_title"`
	SetPaid            bool                  `json:"set_paid"`
	Status             string                `json:"status,omitempty"`
	Currency           string                `json:"currency,omitempty"`
	TransactionID      string                `json:"transaction_id"`
	CustomerID         int64                 `json:"customer_id,omitempty"`
	Billing            Address               `json:"billing"`
	Shipping           Address               `json:"shipping"`
	LineItems          []BackendLineItem     `json:"line_items"`
	ShippingLines      []BackendShippingLine `json:"shipping_lines"`
	MetaData           []MetaData            `json:"meta_data"`
}

// Order-level metadata keys that tie a backend order to the gateway.
const (
	MetaGatewayOrderID       = "_gateway_order_id"
	MetaGatewayTransactionID = "_gateway_transaction_id"
	MetaGatewayCaptureStatus = "_gateway_capture_status"

	ItemMetaSize  = "pa_size"
	ItemMetaColor = "pa_color"
)
