package httpout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentdom "storefront/internal/domain/payment"
)

type staticTokens struct {
	token       string
	err         error
	invalidated int
}

func (s *staticTokens) GetToken(context.Context) (paymentdom.GatewayCredential, error) {
	if s.err != nil {
		return paymentdom.GatewayCredential{}, s.err
	}
	return paymentdom.GatewayCredential{AccessToken: s.token}, nil
}

func (s *staticTokens) Invalidate() { s.invalidated++ }

func gatewayServer(t *testing.T, h http.HandlerFunc) (*GatewayClient, *staticTokens) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tokens := &staticTokens{token: "A21AA-test"}
	return NewGatewayClient(srv.URL, tokens, 2*time.Second), tokens
}

const completedCapture = `{
  "id": "5O190127TN364715T",
  "status": "COMPLETED",
  "purchase_units": [{
    "payments": {"captures": [{
      "id": "3C679366HH908993F",
      "status": "COMPLETED",
      "amount": {"currency_code": "BRL", "value": "150.00"}
    }]}
  }]
}`

func TestCreateOrder(t *testing.T) {
	var got gwCreateOrderRequest
	c, _ := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/checkout/orders", r.URL.Path)
		assert.Equal(t, "Bearer A21AA-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"5O190127TN364715T","status":"CREATED","links":[
		  {"href":"https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T","rel":"approve","method":"GET"}]}`)
	})

	in := paymentdom.PaymentIntent{
		Amount:   paymentdom.MustMoney("150.00"),
		Currency: "BRL",
		Items: []paymentdom.LineItem{
			{ProductRef: "sku-10", Name: "Camiseta", Quantity: 2, UnitPrice: paymentdom.MustMoney("60.00")},
		},
	}
	order, err := c.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", order.ID)
	assert.Equal(t, paymentdom.GatewayOrderCreated, order.Status)
	require.Len(t, order.Links, 1)
	assert.Equal(t, "approve", order.Links[0].Rel)

	require.Len(t, got.PurchaseUnits, 1)
	pu := got.PurchaseUnits[0]
	assert.Equal(t, "CAPTURE", got.Intent)
	assert.Equal(t, "150.00", pu.Amount.Value)
	require.NotNil(t, pu.Amount.Breakdown)
	assert.Equal(t, "120.00", pu.Amount.Breakdown.ItemTotal.Value)
	assert.Equal(t, "30.00", pu.Amount.Breakdown.Shipping.Value)
	assert.Nil(t, pu.Amount.Breakdown.Discount)
	require.Len(t, pu.Items, 1)
	assert.Equal(t, "2", pu.Items[0].Quantity)
	assert.Equal(t, "60.00", pu.Items[0].UnitAmount.Value)
}

func TestCreateOrderDiscountBreakdown(t *testing.T) {
	p, err := buildCreateOrderPayload(paymentdom.PaymentIntent{
		Amount:   paymentdom.MustMoney("100.00"),
		Currency: "BRL",
		Items:    []paymentdom.LineItem{{Name: "Tênis", Quantity: 1, UnitPrice: paymentdom.MustMoney("110.00")}},
	})
	require.NoError(t, err)
	bd := p.PurchaseUnits[0].Amount.Breakdown
	require.NotNil(t, bd)
	assert.Nil(t, bd.Shipping)
	assert.Equal(t, "10.00", bd.Discount.Value)

	noItems, err := buildCreateOrderPayload(paymentdom.PaymentIntent{Amount: 500, Currency: "USD"})
	require.NoError(t, err)
	assert.Nil(t, noItems.PurchaseUnits[0].Amount.Breakdown)
	assert.Equal(t, "5.00", noItems.PurchaseUnits[0].Amount.Value)
}

func TestCreateOrderValidationNeverCallsGateway(t *testing.T) {
	calls := 0
	c, _ := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	for _, in := range []paymentdom.PaymentIntent{
		{Amount: 0, Currency: "BRL"},
		{Amount: -100, Currency: "BRL"},
		{Amount: 100, Currency: "reais"},
		// item total would wrap around to a small amount
		{Amount: 100, Currency: "BRL", Items: []paymentdom.LineItem{
			{Name: "x", Quantity: 2, UnitPrice: paymentdom.Money(math.MaxInt64/2 + 1)},
		}},
	} {
		_, err := c.CreateOrder(context.Background(), in)
		assert.Equal(t, paymentdom.KindValidation, paymentdom.KindOf(err))
	}
	assert.Zero(t, calls)
}

func TestCreateOrderRejected(t *testing.T) {
	c, _ := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed","debug_id":"f1e2d3","details":[{"issue":"AMOUNT_MISMATCH"}]}`)
	})

	_, err := c.CreateOrder(context.Background(), paymentdom.PaymentIntent{Amount: 100, Currency: "BRL"})
	var ge *paymentdom.GatewayOrderError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusUnprocessableEntity, ge.StatusCode)
	assert.Equal(t, "f1e2d3", ge.DebugID)
	assert.Contains(t, ge.Error(), "AMOUNT_MISMATCH")
}

func TestCreateOrderAuthFailure(t *testing.T) {
	c, tokens := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called without a token")
	})
	tokens.err = &paymentdom.AuthError{StatusCode: 401, Err: errors.New("invalid_client")}

	_, err := c.CreateOrder(context.Background(), paymentdom.PaymentIntent{Amount: 100, Currency: "BRL"})
	assert.Equal(t, paymentdom.KindAuth, paymentdom.KindOf(err))
}

func TestCaptureOrderCompleted(t *testing.T) {
	c, _ := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders/5O190127TN364715T/capture", r.URL.Path)
		assert.Equal(t, "capture-5O190127TN364715T", r.Header.Get("PayPal-Request-Id"))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, completedCapture)
	})

	res, err := c.CaptureOrder(context.Background(), "5O190127TN364715T")
	require.NoError(t, err)
	assert.Equal(t, "3C679366HH908993F", res.TransactionID)
	assert.Equal(t, "5O190127TN364715T", res.GatewayOrderID)
	assert.Equal(t, paymentdom.MustMoney("150.00"), res.Amount)
	assert.Equal(t, "BRL", res.Currency)
	assert.True(t, res.Completed())
}

func TestCaptureOrderNotCompleted(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		unknown bool
	}{
		{"capture pending", 201, `{"id":"O1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"T1","status":"PENDING","amount":{"currency_code":"BRL","value":"150.00"}}]}}]}`, false},
		{"order approved", 201, `{"id":"O1","status":"APPROVED","purchase_units":[{"payments":{"captures":[{"id":"T1","status":"COMPLETED","amount":{"currency_code":"BRL","value":"150.00"}}]}}]}`, false},
		{"no capture detail", 201, `{"id":"O1","status":"COMPLETED"}`, false},
		{"declined", 422, `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`, false},
		{"server error", 503, `upstream unavailable`, true},
		{"garbled 2xx", 201, `{"id":`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := c.CaptureOrder(context.Background(), "O1")
			var ce *paymentdom.CaptureNotCompletedError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, "O1", ce.GatewayOrderID)
			assert.Equal(t, tc.unknown, errors.Is(err, paymentdom.ErrCaptureOutcomeUnknown))
		})
	}
}

func TestCaptureOrderUnauthorizedInvalidatesToken(t *testing.T) {
	c, tokens := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"name":"AUTHENTICATION_FAILURE"}`)
	})

	_, err := c.CaptureOrder(context.Background(), "O1")
	assert.Equal(t, paymentdom.KindCaptureNotCompleted, paymentdom.KindOf(err))
	assert.Equal(t, 1, tokens.invalidated)
}

func TestCaptureOrderTransportFailureIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewGatewayClient(url, &staticTokens{token: "t"}, time.Second)
	_, err := c.CaptureOrder(context.Background(), "O1")
	assert.True(t, errors.Is(err, paymentdom.ErrCaptureOutcomeUnknown))
}

func TestCaptureOrderRequiresID(t *testing.T) {
	c := NewGatewayClient("http://127.0.0.1:1", &staticTokens{token: "t"}, time.Second)
	_, err := c.CaptureOrder(context.Background(), "  ")
	assert.Equal(t, paymentdom.KindValidation, paymentdom.KindOf(err))
}

func TestGetOrder(t *testing.T) {
	c, _ := gatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/checkout/orders/5O190127TN364715T", r.URL.Path)
		_, _ = io.WriteString(w, completedCapture)
	})

	res, err := c.GetOrder(context.Background(), "5O190127TN364715T")
	require.NoError(t, err)
	assert.True(t, res.Completed())
	assert.Equal(t, "3C679366HH908993F", res.TransactionID)
}
