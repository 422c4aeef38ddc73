// backend/internal/domain/payment/entity.go
package payment

import (
	"strconv"
	"strings"
	"time"
)

// LineItem is one ordered product inside a PaymentIntent.
type LineItem struct {
	ProductRef string `json:"productRef,omitempty"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  Money  `json:"unitPrice"`
}

// PaymentIntent is created per checkout attempt and is immutable afterwards.
type PaymentIntent struct {
	Amount    Money      `json:"amount"`
	Currency  string     `json:"currency"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
}

// NewIntent normalizes and validates an intent.
func NewIntent(amount Money, currency string, items []LineItem, now time.Time) (PaymentIntent, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))

	cp := make([]LineItem, 0, len(items))
	for _, it := range items {
		cp = append(cp, LineItem{
			ProductRef: strings.TrimSpace(it.ProductRef),
			Name:       strings.TrimSpace(it.Name),
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		})
	}

	in := PaymentIntent{
		Amount:    amount,
		Currency:  cur,
		Items:     cp,
		CreatedAt: now.UTC(),
	}
	if err := in.Validate(); err != nil {
		return PaymentIntent{}, err
	}
	return in, nil
}

// Validate enforces positive amount, ISO currency and sane items.
func (in PaymentIntent) Validate() error {
	if in.Amount <= 0 {
		return NewValidationError("amount", "must be greater than zero")
	}
	if !isISOCurrency(in.Currency) {
		return NewValidationError("currency", "must be a three-letter ISO code")
	}
	for i, it := range in.Items {
		if it.Quantity < 1 {
			return NewValidationError("items", "quantity must be >= 1 (index "+strconv.Itoa(i)+")")
		}
		if it.UnitPrice < 0 {
			return NewValidationError("items", "price must not be negative (index "+strconv.Itoa(i)+")")
		}
	}
	if _, err := in.ItemTotal(); err != nil {
		return NewValidationError("items", "item total is out of range")
	}
	return nil
}

// ItemTotal is the sum of unit price x quantity. It fails with ErrMoneyOverflow
// instead of wrapping.
func (in PaymentIntent) ItemTotal() (Money, error) {
	var sum Money
	for _, it := range in.Items {
		line, err := it.UnitPrice.Mul(it.Quantity)
		if err != nil {
			return 0, err
		}
		if sum, err = sum.Add(line); err != nil {
			return 0, err
		}
	}
	return sum, nil
}

// GatewayOrderStatus mirrors the gateway order status.
type GatewayOrderStatus string

const (
	GatewayOrderCreated   GatewayOrderStatus = "CREATED"
	GatewayOrderApproved  GatewayOrderStatus = "APPROVED"
	GatewayOrderCompleted GatewayOrderStatus = "COMPLETED"
	GatewayOrderOther     GatewayOrderStatus = "OTHER"
)

// ParseGatewayOrderStatus folds unknown statuses into OTHER.
func ParseGatewayOrderStatus(s string) GatewayOrderStatus {
	switch GatewayOrderStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case GatewayOrderCreated:
		return GatewayOrderCreated
	case GatewayOrderApproved:
		return GatewayOrderApproved
	case GatewayOrderCompleted:
		return GatewayOrderCompleted
	default:
		return GatewayOrderOther
	}
}

// Link is a HATEOAS link returned by the gateway (approve, capture, self ...).
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// GatewayOrder is read-only to callers.
type GatewayOrder struct {
	ID     string             `json:"id"`
	Status GatewayOrderStatus `json:"status"`
	Links  []Link             `json:"links"`
}

// StatusCompleted is the only capture status accepted (top level and nested).
const StatusCompleted = "COMPLETED"

// CaptureResult is produced by a successful capture call.
// TransactionID is the downstream idempotency key.
type CaptureResult struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	TransactionID  string `json:"transactionId"`
	Status         string `json:"status"`
	CaptureStatus  string `json:"captureStatus"`
	Amount         Money  `json:"amount"`
	Currency       string `json:"currency"`
}

// Completed reports whether both the order status and the capture detail are COMPLETED.
func (c CaptureResult) Completed() bool {
	return c.Status == StatusCompleted && c.CaptureStatus == StatusCompleted
}

// MatchesIntent checks the captured amount invariant.
func (c CaptureResult) MatchesIntent(in PaymentIntent) bool {
	return c.Amount == in.Amount && strings.EqualFold(c.Currency, in.Currency)
}

// GatewayCredential is a short-lived bearer token.
type GatewayCredential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// ValidAt reports whether the credential is usable at now, keeping skew in reserve.
func (c GatewayCredential) ValidAt(now time.Time, skew time.Duration) bool {
	if strings.TrimSpace(c.AccessToken) == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(skew).Before(c.ExpiresAt)
}

// Helpers

func isISOCurrency(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
