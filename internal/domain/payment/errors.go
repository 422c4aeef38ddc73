// backend/internal/domain/payment/errors.go
package payment

import (
	"errors"
	"fmt"
)

// Kind classifies a checkout failure so callers can branch without matching text.
type Kind string

const (
	KindNone                Kind = ""
	KindValidation          Kind = "validation"
	KindAuth                Kind = "auth"
	KindGatewayOrder        Kind = "gateway_order"
	KindCaptureNotCompleted Kind = "capture_not_completed"
	KindOrderRecording      Kind = "order_recording"
	KindIntegrity           Kind = "integrity"
	KindInternal            Kind = "internal"
)

// ErrCaptureOutcomeUnknown marks a capture whose response never arrived
// (transport failure, timeout, undecodable 2xx body). Funds may have moved.
var ErrCaptureOutcomeUnknown = errors.New("payment: capture outcome unknown")

// ValidationError: caller input is malformed. Nothing has been sent or persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "payment: validation: " + e.Reason
	}
	return fmt.Sprintf("payment: validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AuthError: the gateway credential could not be obtained.
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment: gateway auth failed (status=%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment: gateway auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// GatewayOrderError: the gateway rejected (or never answered) order creation.
type GatewayOrderError struct {
	StatusCode int
	DebugID    string
	Err        error
}

func (e *GatewayOrderError) Error() string {
	msg := fmt.Sprintf("payment: gateway order creation failed (status=%d", e.StatusCode)
	if e.DebugID != "" {
		msg += " debugId=" + e.DebugID
	}
	return msg + fmt.Sprintf("): %v", e.Err)
}

func (e *GatewayOrderError) Unwrap() error { return e.Err }

// CaptureNotCompletedError: the gateway did not finalize the capture.
// Status/CaptureStatus carry the raw values for diagnostics.
type CaptureNotCompletedError struct {
	GatewayOrderID string
	Status         string
	CaptureStatus  string
	StatusCode     int
	Err            error
}

func (e *CaptureNotCompletedError) Error() string {
	msg := fmt.Sprintf("payment: capture not completed orderId=%s status=%q captureStatus=%q",
		e.GatewayOrderID, e.Status, e.CaptureStatus)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CaptureNotCompletedError) Unwrap() error { return e.Err }

// OrderRecordingError: the commerce backend did not record the order after a capture.
// Non-fatal to the payment, fatal to automatic fulfillment.
type OrderRecordingError struct {
	TransactionID string
	StatusCode    int
	Err           error
}

func (e *OrderRecordingError) Error() string {
	return fmt.Sprintf("payment: order recording failed txnId=%s status=%d: %v",
		e.TransactionID, e.StatusCode, e.Err)
}

func (e *OrderRecordingError) Unwrap() error { return e.Err }

// IntegrityError: captured amount differs from the intended amount.
// Never auto-corrected; requires manual reconciliation.
type IntegrityError struct {
	TransactionID    string
	IntendedAmount   Money
	IntendedCurrency string
	CapturedAmount   Money
	CapturedCurrency string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("payment: integrity: txnId=%s captured %s %s != intended %s %s",
		e.TransactionID,
		e.CapturedAmount, e.CapturedCurrency,
		e.IntendedAmount, e.IntendedCurrency,
	)
}

// KindOf returns the taxonomy kind of err (KindInternal for unknown errors).
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		ve *ValidationError
		ae *AuthError
		ge *GatewayOrderError
		ce *CaptureNotCompletedError
		oe *OrderRecordingError
		ie *IntegrityError
	)
	switch {
	case errors.As(err, &ie):
		return KindIntegrity
	case errors.As(err, &oe):
		return KindOrderRecording
	case errors.As(err, &ce):
		return KindCaptureNotCompleted
	case errors.As(err, &ge):
		return KindGatewayOrder
	case errors.As(err, &ae):
		return KindAuth
	case errors.As(err, &ve):
		return KindValidation
	}
	return KindInternal
}
