package payment

import (
	"context"
	"errors"
)

// IntentRepository stores the PaymentIntent behind each gateway order id.
// CreateOrder saves it; CaptureOrder reads it back to enforce the amount invariant.
type IntentRepository interface {
	SaveIntent(ctx context.Context, gatewayOrderID string, in PaymentIntent) error
	GetIntent(ctx context.Context, gatewayOrderID string) (PaymentIntent, error)
}

// 共通エラー
var (
	ErrIntentNotFound = errors.New("payment: intent not found")
	ErrConflict       = errors.New("payment: conflict")
)
