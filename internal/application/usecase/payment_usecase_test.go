package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentdom "storefront/internal/domain/payment"
)

func TestPaymentCreateOrderStoresIntent(t *testing.T) {
	gw := &fakeGateway{}
	intents := newMemIntents()
	uc := NewPaymentUsecase(gw, intents)

	order, err := uc.CreateOrder(context.Background(), CreateOrderInput{
		Amount:   paymentdom.MustMoney("150.00"),
		Currency: "brl",
		Items:    []paymentdom.LineItem{{Name: "Camiseta", Quantity: 1, UnitPrice: paymentdom.MustMoney("120.00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", order.ID)

	stored, err := intents.GetIntent(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, paymentdom.MustMoney("150.00"), stored.Amount)
	assert.Equal(t, "BRL", stored.Currency)
	require.Len(t, gw.created, 1)
}

func TestPaymentCreateOrderValidation(t *testing.T) {
	gw := &fakeGateway{}
	uc := NewPaymentUsecase(gw, newMemIntents())

	_, err := uc.CreateOrder(context.Background(), CreateOrderInput{Amount: 0, Currency: "BRL"})
	assert.Equal(t, paymentdom.KindValidation, paymentdom.KindOf(err))
	_, err = uc.CreateOrder(context.Background(), CreateOrderInput{Amount: 100, Currency: "R$"})
	assert.Equal(t, paymentdom.KindValidation, paymentdom.KindOf(err))
	assert.Empty(t, gw.created)
}

func TestPaymentCreateOrderErrors(t *testing.T) {
	gw := &fakeGateway{createErr: &paymentdom.GatewayOrderError{StatusCode: 422, Err: errors.New("rejected")}}
	uc := NewPaymentUsecase(gw, newMemIntents())
	_, err := uc.CreateOrder(context.Background(), CreateOrderInput{Amount: 100, Currency: "BRL"})
	assert.Equal(t, paymentdom.KindGatewayOrder, paymentdom.KindOf(err))

	intents := newMemIntents()
	intents.err = errors.New("firestore unavailable")
	uc = NewPaymentUsecase(&fakeGateway{}, intents)
	_, err = uc.CreateOrder(context.Background(), CreateOrderInput{Amount: 100, Currency: "BRL"})
	assert.Equal(t, paymentdom.KindGatewayOrder, paymentdom.KindOf(err))

	// no intent store: the order is still created (capture then rejects it as unknown)
	order, err := NewPaymentUsecase(&fakeGateway{}, nil).CreateOrder(context.Background(), CreateOrderInput{Amount: 100, Currency: "BRL"})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", order.ID)
}
