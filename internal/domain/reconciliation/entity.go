// backend/internal/domain/reconciliation/entity.go
package reconciliation

import (
	"errors"
	"strings"
	"time"

	paymentdom "storefront/internal/domain/payment"
)

// Outcome of a completed capture.
type Outcome string

const (
	OutcomeOrderRecorded     Outcome = "ORDER_RECORDED"
	OutcomeOrderRecordFailed Outcome = "ORDER_RECORD_FAILED"
)

func IsValidOutcome(o Outcome) bool {
	return o == OutcomeOrderRecorded || o == OutcomeOrderRecordFailed
}

// Entry is one append-only ledger row per completed capture.
//
// ✅ docId / primary key = TransactionID
// - written exactly once per capture (re-writes are no-ops)
// - never updated, never deleted
type Entry struct {
	TransactionID  string           `json:"transactionId" yaml:"transactionId"`
	GatewayOrderID string           `json:"gatewayOrderId" yaml:"gatewayOrderId"`
	Amount         paymentdom.Money `json:"amount" yaml:"amount"`
	Currency       string           `json:"currency" yaml:"currency"`
	Outcome        Outcome          `json:"outcome" yaml:"outcome"`
	Detail         string           `json:"detail,omitempty" yaml:"detail,omitempty"`

	// set only when Outcome == ORDER_RECORDED
	OrderRecordID     int64  `json:"orderRecordId,omitempty" yaml:"orderRecordId,omitempty"`
	OrderRecordNumber string `json:"orderRecordNumber,omitempty" yaml:"orderRecordNumber,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Errors
var (
	ErrInvalidTransactionID = errors.New("reconciliation: invalid transactionId")
	ErrInvalidOutcome       = errors.New("reconciliation: invalid outcome")
	ErrInvalidCreatedAt     = errors.New("reconciliation: invalid createdAt")
	ErrNotFound             = errors.New("reconciliation: not found")
	ErrConflict             = errors.New("reconciliation: conflict")
	// stored entry for the transaction carries a different outcome than the one being written
	ErrOutcomeMismatch = errors.New("reconciliation: stored outcome differs")
)

// NewRecorded builds the entry for a capture whose order was recorded.
func NewRecorded(c paymentdom.CaptureResult, orderID int64, orderNumber string, now time.Time) (Entry, error) {
	e := Entry{
		TransactionID:     strings.TrimSpace(c.TransactionID),
		GatewayOrderID:    strings.TrimSpace(c.GatewayOrderID),
		Amount:            c.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(c.Currency)),
		Outcome:           OutcomeOrderRecorded,
		OrderRecordID:     orderID,
		OrderRecordNumber: strings.TrimSpace(orderNumber),
		CreatedAt:         now.UTC(),
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// NewFailed builds the entry for a capture whose order could not be recorded.
func NewFailed(c paymentdom.CaptureResult, detail string, now time.Time) (Entry, error) {
	e := Entry{
		TransactionID:  strings.TrimSpace(c.TransactionID),
		GatewayOrderID: strings.TrimSpace(c.GatewayOrderID),
		Amount:         c.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(c.Currency)),
		Outcome:        OutcomeOrderRecordFailed,
		Detail:         strings.TrimSpace(detail),
		CreatedAt:      now.UTC(),
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.TransactionID) == "" {
		return ErrInvalidTransactionID
	}
	if !IsValidOutcome(e.Outcome) {
		return ErrInvalidOutcome
	}
	if e.CreatedAt.IsZero() {
		return ErrInvalidCreatedAt
	}
	return nil
}

// Recorded reports whether the order made it into the commerce backend.
func (e Entry) Recorded() bool {
	return e.Outcome == OutcomeOrderRecorded
}
