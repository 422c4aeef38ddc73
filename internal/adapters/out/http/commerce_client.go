// backend/internal/adapters/out/http/commerce_client.go
package httpout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
)

// CommerceClient creates orders in the commerce backend (WooCommerce-style REST).
//
// Auth is basic (consumer key / secret). Every create carries
// Idempotency-Key = gateway transaction id.
type CommerceClient struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	client         *http.Client
}

// baseURL example: https://shop.example.com
func NewCommerceClient(baseURL, consumerKey, consumerSecret string, timeout time.Duration) *CommerceClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &CommerceClient{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		consumerKey:    strings.TrimSpace(consumerKey),
		consumerSecret: strings.TrimSpace(consumerSecret),
		client:         &http.Client{Timeout: timeout},
	}
}

type commerceOrderResponse struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	Status         string `json:"status"`
	TransactionID  string `json:"transaction_id"`
	CustomerID     int64  `json:"customer_id"`
	DateCreatedGMT string `json:"date_created_gmt"`
}

type commerceErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateOrder posts the order. Any failure is returned as *payment.OrderRecordingError.
func (c *CommerceClient) CreateOrder(ctx context.Context, req orderdom.BackendOrderRequest) (orderdom.OrderRecord, error) {
	txnID := strings.TrimSpace(req.TransactionID)
	fail := func(status int, err error) (orderdom.OrderRecord, error) {
		return orderdom.OrderRecord{}, &paymentdom.OrderRecordingError{TransactionID: txnID, StatusCode: status, Err: err}
	}

	if c == nil || c.baseURL == "" {
		return fail(0, errors.New("commerce client baseURL is empty"))
	}
	if txnID == "" {
		return fail(0, errors.New("transaction id is required"))
	}

	b, err := json.Marshal(req)
	if err != nil {
		return fail(0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/wp-json/wc/v3/orders", bytes.NewReader(b))
	if err != nil {
		return fail(0, err)
	}
	httpReq.SetBasicAuth(c.consumerKey, c.consumerSecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", txnID)

	res, err := c.client.Do(httpReq)
	if err != nil {
		log.Printf("[commerce] create order transport failure txnId=%s err=%v", maskID(txnID), err)
		return fail(0, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxGatewayBody))
	if err != nil {
		return fail(res.StatusCode, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var ce commerceErrorResponse
		_ = json.Unmarshal(body, &ce)
		msg := strings.TrimSpace(ce.Code + " " + ce.Message)
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		log.Printf("[commerce] create order rejected txnId=%s status=%d msg=%s", maskID(txnID), res.StatusCode, msg)
		return fail(res.StatusCode, fmt.Errorf("commerce backend status %d: %s", res.StatusCode, msg))
	}

	var out commerceOrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fail(res.StatusCode, fmt.Errorf("decode order: %w", err))
	}
	if out.ID <= 0 {
		return fail(res.StatusCode, errors.New("order id missing in response"))
	}

	number := strings.TrimSpace(out.Number)
	if number == "" {
		number = fmt.Sprintf("%d", out.ID)
	}

	createdAt := time.Now().UTC()
	if t, err := time.Parse("2006-01-02T15:04:05", out.DateCreatedGMT); err == nil {
		createdAt = t.UTC()
	}

	rec := orderdom.OrderRecord{
		ID:            out.ID,
		Number:        "#" + strings.TrimPrefix(number, "#"),
		TransactionID: txnID,
		CustomerID:    req.CustomerID,
		Billing:       req.Billing,
		Shipping:      req.Shipping,
		CreatedAt:     createdAt,
	}

	log.Printf("[commerce] create order OK txnId=%s orderId=%d number=%s", maskID(txnID), rec.ID, rec.Number)
	return rec, nil
}

// maskID keeps logs useful without printing full identifiers.
func maskID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 6 {
		return s
	}
	return s[:3] + "***" + s[len(s)-3:]
}
