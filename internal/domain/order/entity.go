// backend/internal/domain/order/entity.go
package order

import (
	"errors"
	"strconv"
	"strings"
	"time"

	paymentdom "storefront/internal/domain/payment"
)

// ========================================
// Snapshot structs (stored in OrderRecord)
// ========================================

// Address is a billing or shipping snapshot as sent by the checkout form.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	Number    string `json:"number,omitempty"`
	District  string `json:"neighborhood,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Document  string `json:"document,omitempty"`
}

// IsZero reports whether nothing was filled in.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Line is one ordered product with its storefront selections.
type Line struct {
	ProductID     int64  `json:"productId"`
	VariationID   int64  `json:"variationId,omitempty"`
	Quantity      int    `json:"quantity"`
	SelectedSize  string `json:"selectedSize,omitempty"`
	SelectedColor string `json:"selectedColor,omitempty"`
}

// ShippingSelection is the method picked by the buyer.
type ShippingSelection struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
}

// ShippingLine is what the commerce backend stores as shipping.
type ShippingLine struct {
	MethodID    string           `json:"methodId"`
	MethodTitle string           `json:"methodTitle"`
	Total       paymentdom.Money `json:"total"`
}

// ========================================
// Entity
// ========================================

// OrderRecord is the commerce-backend order created after a completed capture.
// TransactionID is the idempotency key.
type OrderRecord struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	TransactionID  string `json:"transactionId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	CaptureStatus  string `json:"captureStatus"`
	CustomerID     int64  `json:"customerId,omitempty"`

	Billing  Address `json:"billing"`
	Shipping Address `json:"shipping"`

	Lines         []Line         `json:"lines"`
	ShippingLines []ShippingLine `json:"shippingLines"`

	CreatedAt time.Time `json:"createdAt"`
}

// RecordInput is everything RecordOrder needs after a capture.
type RecordInput struct {
	Capture paymentdom.CaptureResult
	Intent  paymentdom.PaymentIntent

	Lines []Line

	Billing        Address
	Shipping       Address
	SameAsShipping bool

	ShippingSelection    *ShippingSelection
	ShippingCost         paymentdom.Money
	FreeShippingEligible bool

	CustomerID int64
}

// ========================================
// Errors
// ========================================

var (
	ErrNotFound = errors.New("order: not found")
	ErrConflict = errors.New("order: conflict")
)

// ========================================
// Behavior
// ========================================

// ValidateLines rejects the whole batch if any line lacks a product or quantity.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return paymentdom.NewValidationError("items", "at least one item is required")
	}
	for i, l := range lines {
		if l.ProductID <= 0 {
			return paymentdom.NewValidationError("items", "product id is required (index "+strconv.Itoa(i)+")")
		}
		if l.Quantity <= 0 {
			return paymentdom.NewValidationError("items", "quantity must be > 0 (index "+strconv.Itoa(i)+")")
		}
	}
	return nil
}

// ResolveBilling: when SameAsShipping is set (or billing is empty) the shipping
// address doubles as the billing address.
func (in RecordInput) ResolveBilling() Address {
	if in.SameAsShipping || in.Billing.IsZero() {
		return in.Shipping
	}
	return in.Billing
}

// ResolveShipping falls back to billing when no shipping address was sent.
func (in RecordInput) ResolveShipping() Address {
	if in.Shipping.IsZero() {
		return in.Billing
	}
	return in.Shipping
}

const (
	DefaultShippingMethodID    = "flat_rate"
	DefaultShippingMethodTitle = "Shipping"
)

// BuildShippingLines: free shipping -> none; otherwise exactly one line.
func (in RecordInput) BuildShippingLines() []ShippingLine {
	if in.FreeShippingEligible {
		return []ShippingLine{}
	}

	methodID := DefaultShippingMethodID
	title := DefaultShippingMethodTitle
	if in.ShippingSelection != nil {
		if v := strings.TrimSpace(in.ShippingSelection.MethodID); v != "" {
			methodID = v
		}
		if v := strings.TrimSpace(in.ShippingSelection.MethodTitle); v != "" {
			title = v
		}
	}

	cost := in.ShippingCost
	if cost < 0 {
		cost = 0
	}

	return []ShippingLine{{
		MethodID:    methodID,
		MethodTitle: title,
		Total:       cost,
	}}
}
