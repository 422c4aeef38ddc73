// backend/internal/application/usecase/payment_usecase.go
package usecase

import (
	"context"
	"errors"
	"log"
	"time"

	paymentdom "storefront/internal/domain/payment"
)

// GatewayPort is the gateway surface the checkout usecases depend on.
// ✅ implemented by httpout.GatewayClient
type GatewayPort interface {
	CreateOrder(ctx context.Context, in paymentdom.PaymentIntent) (paymentdom.GatewayOrder, error)
	CaptureOrder(ctx context.Context, gatewayOrderID string) (paymentdom.CaptureResult, error)
	GetOrder(ctx context.Context, gatewayOrderID string) (paymentdom.CaptureResult, error)
}

// TokenPort is the credential cache (httpout.GatewayTokenProvider).
type TokenPort interface {
	GetToken(ctx context.Context) (paymentdom.GatewayCredential, error)
}

// CreateOrderInput is the create-order request after HTTP decoding.
type CreateOrderInput struct {
	Amount   paymentdom.Money
	Currency string
	Items    []paymentdom.LineItem
}

// PaymentUsecase runs the gateway order-creation step.
// It precedes capture and never writes a reconciliation entry.
type PaymentUsecase struct {
	gateway GatewayPort
	intents paymentdom.IntentRepository
	now     func() time.Time
}

func NewPaymentUsecase(gateway GatewayPort, intents paymentdom.IntentRepository) *PaymentUsecase {
	return &PaymentUsecase{
		gateway: gateway,
		intents: intents,
		now:     time.Now,
	}
}

// CreateOrder validates the intent, creates the gateway order and stores the
// intent under the gateway order id so capture can check the amount later.
func (u *PaymentUsecase) CreateOrder(ctx context.Context, in CreateOrderInput) (paymentdom.GatewayOrder, error) {
	if u == nil || u.gateway == nil {
		return paymentdom.GatewayOrder{}, errors.New("payment usecase: gateway is nil")
	}

	intent, err := paymentdom.NewIntent(in.Amount, in.Currency, in.Items, u.now())
	if err != nil {
		return paymentdom.GatewayOrder{}, err
	}

	order, err := u.gateway.CreateOrder(ctx, intent)
	if err != nil {
		log.Printf("[payment_usecase] create order failed kind=%s err=%v", paymentdom.KindOf(err), err)
		return paymentdom.GatewayOrder{}, err
	}

	if u.intents != nil {
		if err := u.intents.SaveIntent(ctx, order.ID, intent); err != nil && !errors.Is(err, paymentdom.ErrConflict) {
			// the gateway order is unusable for capture without its intent
			log.Printf("[payment_usecase] WARN save intent failed orderId=%s err=%v", order.ID, err)
			return paymentdom.GatewayOrder{}, &paymentdom.GatewayOrderError{Err: err}
		}
	}

	log.Printf("[payment_usecase] OK create order orderId=%s amount=%s %s items=%d",
		order.ID, intent.Amount, intent.Currency, len(intent.Items),
	)
	return order, nil
}
