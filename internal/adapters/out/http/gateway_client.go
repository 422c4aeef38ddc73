// backend/internal/adapters/out/http/gateway_client.go
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
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentdom "storefront/internal/domain/payment"
)

const maxGatewayBody = 1 << 20 // 1MB

// TokenSource is what GatewayClient needs from GatewayTokenProvider.
type TokenSource interface {
	GetToken(ctx context.Context) (paymentdom.GatewayCredential, error)
	Invalidate()
}

// GatewayClient wraps the gateway order-create / capture / get endpoints.
//
// Responses are decoded into typed structs and fail closed: an unexpected shape
// becomes GatewayOrderError (create) or CaptureNotCompletedError (capture).
type GatewayClient struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	timeout time.Duration
}

// baseURL example:
// - sandbox: https://api-m.sandbox.paypal.com
// - local:   http://localhost:9090
func NewGatewayClient(baseURL string, tokens TokenSource, timeout time.Duration) *GatewayClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GatewayClient{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// ------------------------------------------------------------
// Wire types
// ------------------------------------------------------------

type gwMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type gwBreakdown struct {
	ItemTotal *gwMoney `json:"item_total,omitempty"`
	Shipping  *gwMoney `json:"shipping,omitempty"`
	Discount  *gwMoney `json:"discount,omitempty"`
}

type gwAmount struct {
	CurrencyCode string       `json:"currency_code"`
	Value        string       `json:"value"`
	Breakdown    *gwBreakdown `json:"breakdown,omitempty"`
}

type gwItem struct {
	Name       string  `json:"name"`
	SKU        string  `json:"sku,omitempty"`
	Quantity   string  `json:"quantity"`
	UnitAmount gwMoney `json:"unit_amount"`
}

type gwPurchaseUnit struct {
	Amount gwAmount `json:"amount"`
	Items  []gwItem `json:"items,omitempty"`
}

type gwCreateOrderRequest struct {
	Intent        string           `json:"intent"`
	PurchaseUnits []gwPurchaseUnit `json:"purchase_units"`
}

type gwLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type gwOrderResponse struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Links  []gwLink `json:"links"`
}

type gwCapture struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Amount *gwMoney `json:"amount"`
}

type gwCaptureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments *struct {
			Captures []gwCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type gwErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e gwErrorResponse) summary() string {
	parts := []string{}
	if e.Name != "" {
		parts = append(parts, e.Name)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	for _, d := range e.Details {
		if d.Issue != "" {
			parts = append(parts, d.Issue)
		}
	}
	return strings.Join(parts, ": ")
}

// ------------------------------------------------------------
// CreateOrder
// ------------------------------------------------------------

// CreateOrder creates a gateway order for the intent (intent=CAPTURE).
func (c *GatewayClient) CreateOrder(ctx context.Context, in paymentdom.PaymentIntent) (paymentdom.GatewayOrder, error) {
	if in.Amount <= 0 {
		return paymentdom.GatewayOrder{}, paymentdom.NewValidationError("amount", "must be greater than zero")
	}
	if err := in.Validate(); err != nil {
		return paymentdom.GatewayOrder{}, err
	}
	if c == nil || c.baseURL == "" {
		return paymentdom.GatewayOrder{}, &paymentdom.GatewayOrderError{Err: errors.New("gateway client baseURL is empty")}
	}

	payload, err := buildCreateOrderPayload(in)
	if err != nil {
		return paymentdom.GatewayOrder{}, paymentdom.NewValidationError("items", err.Error())
	}

	status, body, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, "")
	if err != nil {
		var ae *paymentdom.AuthError
		if errors.As(err, &ae) {
			return paymentdom.GatewayOrder{}, err
		}
		return paymentdom.GatewayOrder{}, &paymentdom.GatewayOrderError{StatusCode: status, Err: err}
	}
	if status < 200 || status > 299 {
		var ge gwErrorResponse
		_ = json.Unmarshal(body, &ge)
		msg := ge.summary()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		log.Printf("[gateway] create order rejected status=%d debugId=%s msg=%s", status, ge.DebugID, msg)
		return paymentdom.GatewayOrder{}, &paymentdom.GatewayOrderError{
			StatusCode: status,
			DebugID:    ge.DebugID,
			Err:        errors.New(msg),
		}
	}

	var out gwOrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return paymentdom.GatewayOrder{}, &paymentdom.GatewayOrderError{StatusCode: status, Err: fmt.Errorf("decode order: %w", err)}
	}
	if strings.TrimSpace(out.ID) == "" {
		return paymentdom.GatewayOrder{}, &paymentdom.GatewayOrderError{StatusCode: status, Err: errors.New("order id missing in response")}
	}

	order := paymentdom.GatewayOrder{
		ID:     strings.TrimSpace(out.ID),
		Status: paymentdom.ParseGatewayOrderStatus(out.Status),
		Links:  make([]paymentdom.Link, 0, len(out.Links)),
	}
	for _, l := range out.Links {
		order.Links = append(order.Links, paymentdom.Link{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}

	log.Printf("[gateway] create order OK orderId=%s status=%s amount=%s %s",
		order.ID, order.Status, in.Amount, in.Currency,
	)
	return order, nil
}

func buildCreateOrderPayload(in paymentdom.PaymentIntent) (gwCreateOrderRequest, error) {
	cur := in.Currency
	money := func(m paymentdom.Money) gwMoney {
		return gwMoney{CurrencyCode: cur, Value: m.String()}
	}

	pu := gwPurchaseUnit{
		Amount: gwAmount{CurrencyCode: cur, Value: in.Amount.String()},
	}

	if len(in.Items) > 0 {
		itemTotal, err := in.ItemTotal()
		if err != nil {
			return gwCreateOrderRequest{}, err
		}
		bd := &gwBreakdown{}
		it := money(itemTotal)
		bd.ItemTotal = &it

		// amount = item_total + shipping - discount must hold on the gateway side
		switch diff := in.Amount - itemTotal; {
		case diff > 0:
			s := money(diff)
			bd.Shipping = &s
		case diff < 0:
			d := money(-diff)
			bd.Discount = &d
		}
		pu.Amount.Breakdown = bd

		for _, item := range in.Items {
			name := item.Name
			if name == "" {
				name = "item"
			}
			pu.Items = append(pu.Items, gwItem{
				Name:       name,
				SKU:        item.ProductRef,
				Quantity:   strconv.Itoa(item.Quantity),
				UnitAmount: money(item.UnitPrice),
			})
		}
	}

	return gwCreateOrderRequest{
		Intent:        "CAPTURE",
		PurchaseUnits: []gwPurchaseUnit{pu},
	}, nil
}

// ------------------------------------------------------------
// CaptureOrder
// ------------------------------------------------------------

// CaptureOrder captures an approved gateway order.
// Success requires top-level status AND capture-detail status to be COMPLETED.
func (c *GatewayClient) CaptureOrder(ctx context.Context, gatewayOrderID string) (paymentdom.CaptureResult, error) {
	id := strings.TrimSpace(gatewayOrderID)
	if id == "" {
		return paymentdom.CaptureResult{}, paymentdom.NewValidationError("orderID", "is required")
	}
	if c == nil || c.baseURL == "" {
		return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{GatewayOrderID: id, Err: errors.New("gateway client baseURL is empty")}
	}

	path := "/v2/checkout/orders/" + url.PathEscape(id) + "/capture"
	status, body, err := c.do(ctx, http.MethodPost, path, nil, "capture-"+id)
	if err != nil {
		var ae *paymentdom.AuthError
		if errors.As(err, &ae) {
			// nothing was sent to the capture endpoint
			return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{GatewayOrderID: id, StatusCode: ae.StatusCode, Err: err}
		}
		log.Printf("[gateway] capture transport failure orderId=%s err=%v", id, err)
		return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{
			GatewayOrderID: id,
			Err:            fmt.Errorf("%w: %v", paymentdom.ErrCaptureOutcomeUnknown, err),
		}
	}

	if status >= 500 {
		log.Printf("[gateway] capture server error orderId=%s status=%d", id, status)
		return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{
			GatewayOrderID: id,
			StatusCode:     status,
			Err:            fmt.Errorf("%w: gateway status %d", paymentdom.ErrCaptureOutcomeUnknown, status),
		}
	}
	if status < 200 || status > 299 {
		var ge gwErrorResponse
		_ = json.Unmarshal(body, &ge)
		log.Printf("[gateway] capture rejected orderId=%s status=%d debugId=%s msg=%s", id, status, ge.DebugID, ge.summary())
		return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{
			GatewayOrderID: id,
			Status:         ge.Name,
			StatusCode:     status,
			Err:            errors.New(ge.summary()),
		}
	}

	res, decErr := decodeCapture(id, body)
	if decErr != nil {
		// 2xx but unreadable: money may have moved
		return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{
			GatewayOrderID: id,
			StatusCode:     status,
			Err:            fmt.Errorf("%w: %v", paymentdom.ErrCaptureOutcomeUnknown, decErr),
		}
	}

	if !res.Completed() {
		log.Printf("[gateway] capture not completed orderId=%s status=%s captureStatus=%s", id, res.Status, res.CaptureStatus)
		return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{
			GatewayOrderID: id,
			Status:         res.Status,
			CaptureStatus:  res.CaptureStatus,
			StatusCode:     status,
		}
	}
	if res.TransactionID == "" {
		return paymentdom.CaptureResult{}, &paymentdom.CaptureNotCompletedError{
			GatewayOrderID: id,
			Status:         res.Status,
			CaptureStatus:  res.CaptureStatus,
			StatusCode:     status,
			Err:            fmt.Errorf("%w: capture id missing", paymentdom.ErrCaptureOutcomeUnknown),
		}
	}

	log.Printf("[gateway] capture OK orderId=%s txnId=%s amount=%s %s", id, res.TransactionID, res.Amount, res.Currency)
	return res, nil
}

// GetOrder reads the order back and reports its capture state without judging it.
// Used to resolve a capture whose response was lost.
func (c *GatewayClient) GetOrder(ctx context.Context, gatewayOrderID string) (paymentdom.CaptureResult, error) {
	id := strings.TrimSpace(gatewayOrderID)
	if id == "" {
		return paymentdom.CaptureResult{}, paymentdom.NewValidationError("orderID", "is required")
	}
	if c == nil || c.baseURL == "" {
		return paymentdom.CaptureResult{}, errors.New("gateway client baseURL is empty")
	}

	status, body, err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id), nil, "")
	if err != nil {
		return paymentdom.CaptureResult{}, err
	}
	if status < 200 || status > 299 {
		var ge gwErrorResponse
		_ = json.Unmarshal(body, &ge)
		return paymentdom.CaptureResult{}, fmt.Errorf("gateway get order failed status=%d: %s", status, ge.summary())
	}
	return decodeCapture(id, body)
}

func decodeCapture(orderID string, body []byte) (paymentdom.CaptureResult, error) {
	var out gwCaptureResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return paymentdom.CaptureResult{}, fmt.Errorf("decode capture: %w", err)
	}

	res := paymentdom.CaptureResult{
		GatewayOrderID: orderID,
		Status:         strings.ToUpper(strings.TrimSpace(out.Status)),
	}
	if strings.TrimSpace(out.ID) != "" {
		res.GatewayOrderID = strings.TrimSpace(out.ID)
	}

	if len(out.PurchaseUnits) == 0 || out.PurchaseUnits[0].Payments == nil ||
		len(out.PurchaseUnits[0].Payments.Captures) == 0 {
		// no capture detail: status pair cannot be COMPLETED/COMPLETED
		return res, nil
	}

	cp := out.PurchaseUnits[0].Payments.Captures[0]
	res.TransactionID = strings.TrimSpace(cp.ID)
	res.CaptureStatus = strings.ToUpper(strings.TrimSpace(cp.Status))
	if cp.Amount != nil {
		amt, err := paymentdom.ParseMoney(cp.Amount.Value)
		if err != nil {
			return paymentdom.CaptureResult{}, fmt.Errorf("decode capture amount: %w", err)
		}
		res.Amount = amt
		res.Currency = strings.ToUpper(strings.TrimSpace(cp.Amount.CurrencyCode))
	}
	return res, nil
}

// ------------------------------------------------------------
// transport
// ------------------------------------------------------------

// do sends an authenticated JSON request and returns status + body.
// A 401 invalidates the cached credential.
func (c *GatewayClient) do(ctx context.Context, method, path string, payload any, requestID string) (int, []byte, error) {
	cred, err := c.tokens.GetToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxGatewayBody))
	if err != nil {
		return res.StatusCode, nil, err
	}

	if res.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	return res.StatusCode, body, nil
}
