package httpout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
)

func TestCommerceCreateOrder(t *testing.T) {
	var got orderdom.BackendOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		assert.Equal(t, "TXN-1", r.Header.Get("Idempotency-Key"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":900,"number":"900","status":"processing","transaction_id":"TXN-1","date_created_gmt":"2026-03-01T12:00:00"}`)
	}))
	defer srv.Close()

	c := NewCommerceClient(srv.URL+"/", "ck_test", "cs_test", time.Second)
	rec, err := c.CreateOrder(context.Background(), orderdom.BackendOrderRequest{
		PaymentMethod: "paypal",
		SetPaid:       true,
		TransactionID: "TXN-1",
		LineItems:     []orderdom.BackendLineItem{{ProductID: 10, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), rec.ID)
	assert.Equal(t, "#900", rec.Number)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), rec.CreatedAt)
	assert.True(t, got.SetPaid)
	assert.Equal(t, "TXN-1", got.TransactionID)
}

func TestCommerceCreateOrderFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"rejected", 400, `{"code":"woocommerce_rest_invalid_product_id","message":"Invalid product"}`},
		{"server error", 503, `busy`},
		{"missing id", 201, `{"number":"1"}`},
		{"garbled", 201, `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := NewCommerceClient(srv.URL, "ck", "cs", time.Second)
			_, err := c.CreateOrder(context.Background(), orderdom.BackendOrderRequest{TransactionID: "TXN-1"})
			var oe *paymentdom.OrderRecordingError
			require.True(t, errors.As(err, &oe), "got %v", err)
			assert.Equal(t, "TXN-1", oe.TransactionID)
			assert.Equal(t, tc.status, oe.StatusCode)
		})
	}
}

func TestCommerceCreateOrderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewCommerceClient(srv.URL, "ck", "cs", 50*time.Millisecond)
	start := time.Now()
	_, err := c.CreateOrder(context.Background(), orderdom.BackendOrderRequest{TransactionID: "TXN-1"})
	assert.Less(t, time.Since(start), 2*time.Second)

	var oe *paymentdom.OrderRecordingError
	require.True(t, errors.As(err, &oe), "got %v", err)
	assert.Equal(t, "TXN-1", oe.TransactionID)
	assert.Zero(t, oe.StatusCode)
	var ne net.Error
	require.True(t, errors.As(err, &ne), "got %v", err)
	assert.True(t, ne.Timeout())
}

func TestCommerceCreateOrderTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewCommerceClient(url, "ck", "cs", time.Second).
		CreateOrder(context.Background(), orderdom.BackendOrderRequest{TransactionID: "TXN-1"})
	assert.Equal(t, paymentdom.KindOrderRecording, paymentdom.KindOf(err))
}

func TestCommerceCreateOrderRequiresTransactionID(t *testing.T) {
	c := NewCommerceClient("http://127.0.0.1:1", "ck", "cs", time.Second)
	_, err := c.CreateOrder(context.Background(), orderdom.BackendOrderRequest{})
	assert.Equal(t, paymentdom.KindOrderRecording, paymentdom.KindOf(err))
}

func TestMaskID(t *testing.T) {
	assert.Equal(t, "3C6***93F", maskID("3C679366HH908993F"))
	assert.Equal(t, "abc", maskID("abc"))
}
