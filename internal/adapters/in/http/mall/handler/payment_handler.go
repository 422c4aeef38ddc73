// backend/internal/adapters/in/http/mall/handler/payment_handler.go
package mallHandler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	usecase "storefront/internal/application/usecase"
	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
)

// orderCreator / captureRunner are the usecase surfaces this handler needs.
type orderCreator interface {
	CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (paymentdom.GatewayOrder, error)
}

type captureRunner interface {
	Capture(ctx context.Context, in usecase.CaptureInput) (usecase.CaptureOutcome, error)
}

// PaymentHandler handles:
// - POST /payment/create-order   (also /mall/payment/create-order)
// - POST /payment/capture-order  (also /mall/payment/capture-order)
type PaymentHandler struct {
	orders  orderCreator
	capture captureRunner
}

func NewPaymentHandler(orders orderCreator, capture captureRunner) http.Handler {
	return &PaymentHandler{orders: orders, capture: capture}
}

// ServeHTTP routes requests.
func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// ✅ Allow CORS preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// normalize path (drop trailing slash, support /mall/*)
	path0 := strings.TrimSuffix(r.URL.Path, "/")
	path0 = strings.TrimPrefix(path0, "/mall")

	switch path0 {
	case "/payment/create-order":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.createOrder(w, r)
	case "/payment/capture-order":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.captureOrder(w, r)
	default:
		notFound(w)
	}
}

// ------------------------------------------------------------
// POST /payment/create-order
// ------------------------------------------------------------

type createOrderItem struct {
	ID       flexString       `json:"id"`
	Name     string           `json:"name"`
	Price    paymentdom.Money `json:"price"`
	Quantity int              `json:"quantity"`
}

type createOrderRequest struct {
	Amount   paymentdom.Money  `json:"amount"`
	Currency string            `json:"currency"`
	Items    []createOrderItem `json:"items"`
}

type createOrderResponse struct {
	ID     string            `json:"id"`
	Status string            `json:"status"`
	Links  []paymentdom.Link `json:"links"`
}

func (h *PaymentHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.orders == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "payment_usecase_not_initialized"})
		return
	}
	reqID := chimw.GetReqID(r.Context())

	var req createOrderRequest
	if err := readJSON(r, &req); err != nil {
		log.Printf("[payment_handler] create-order bad body reqId=%s err=%v", reqID, err)
		badRequest(w, "invalid json: "+err.Error())
		return
	}

	items := make([]paymentdom.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, paymentdom.LineItem{
			ProductRef: string(it.ID),
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.Price,
		})
	}

	order, err := h.orders.CreateOrder(r.Context(), usecase.CreateOrderInput{
		Amount:   req.Amount,
		Currency: req.Currency,
		Items:    items,
	})
	if err != nil {
		log.Printf("[payment_handler] create-order failed reqId=%s kind=%s err=%v", reqID, paymentdom.KindOf(err), err)
		writeCheckoutError(w, err, "")
		return
	}

	links := order.Links
	if links == nil {
		links = []paymentdom.Link{}
	}
	writeJSON(w, http.StatusOK, createOrderResponse{
		ID:     order.ID,
		Status: string(order.Status),
		Links:  links,
	})
}

// ------------------------------------------------------------
// POST /payment/capture-order
// ------------------------------------------------------------

type captureItem struct {
	ID            flexInt `json:"id"`
	Quantity      int     `json:"quantity"`
	VariationID   flexInt `json:"variation_id"`
	SelectedSize  string  `json:"selectedSize"`
	SelectedColor string  `json:"selectedColor"`
}

// selectedShipping: method_id/method_title (backend names) or id/title (UI names)
type selectedShipping struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	ID          string `json:"id"`
	Title       string `json:"title"`
}

type captureOrderRequest struct {
	OrderID                   string            `json:"orderID"`
	Items                     []captureItem     `json:"items"`
	BillingData               orderdom.Address  `json:"billingData"`
	ShippingData              orderdom.Address  `json:"shippingData"`
	SameAsShipping            bool              `json:"sameAsShipping"`
	SelectedShipping          *selectedShipping `json:"selectedShipping"`
	ShippingCost              paymentdom.Money  `json:"shippingCost"`
	IsEligibleForFreeShipping bool              `json:"isEligibleForFreeShipping"`
	CustomerID                flexInt           `json:"customer_id"`
}

type captureSuccessResponse struct {
	Success           bool             `json:"success"`
	PaymentID         string           `json:"paymentID"`
	Status            string           `json:"status"`
	Amount            paymentdom.Money `json:"amount"`
	Currency          string           `json:"currency"`
	OrderRecordID     int64            `json:"orderRecordId"`
	OrderRecordNumber string           `json:"orderRecordNumber"`
}

func (h *PaymentHandler) captureOrder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.capture == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "capture_usecase_not_initialized"})
		return
	}
	reqID := chimw.GetReqID(r.Context())

	var req captureOrderRequest
	if err := readJSON(r, &req); err != nil {
		log.Printf("[payment_handler] capture-order bad body reqId=%s err=%v", reqID, err)
		badRequest(w, "invalid json: "+err.Error())
		return
	}

	in := usecase.CaptureInput{
		GatewayOrderID:       strings.TrimSpace(req.OrderID),
		Lines:                make([]orderdom.Line, 0, len(req.Items)),
		Billing:              req.BillingData,
		Shipping:             req.ShippingData,
		SameAsShipping:       req.SameAsShipping,
		ShippingCost:         req.ShippingCost,
		FreeShippingEligible: req.IsEligibleForFreeShipping,
		CustomerID:           int64(req.CustomerID),
	}
	for _, it := range req.Items {
		in.Lines = append(in.Lines, orderdom.Line{
			ProductID:     int64(it.ID),
			VariationID:   int64(it.VariationID),
			Quantity:      it.Quantity,
			SelectedSize:  strings.TrimSpace(it.SelectedSize),
			SelectedColor: strings.TrimSpace(it.SelectedColor),
		})
	}
	if s := req.SelectedShipping; s != nil {
		sel := &orderdom.ShippingSelection{MethodID: s.MethodID, MethodTitle: s.MethodTitle}
		if sel.MethodID == "" {
			sel.MethodID = s.ID
		}
		if sel.MethodTitle == "" {
			sel.MethodTitle = s.Title
		}
		in.ShippingSelection = sel
	}

	out, err := h.capture.Capture(r.Context(), in)
	if err != nil {
		log.Printf("[payment_handler] capture-order reqId=%s orderId=%s state=%s kind=%s err=%v",
			reqID, in.GatewayOrderID, out.State, paymentdom.KindOf(err), err)
		writeCheckoutError(w, err, out.ReconciliationRef)
		return
	}

	resp := captureSuccessResponse{
		Success:   true,
		PaymentID: out.Capture.TransactionID,
		Status:    out.Capture.Status,
		Amount:    out.Capture.Amount,
		Currency:  out.Capture.Currency,
	}
	if out.Order != nil {
		resp.OrderRecordID = out.Order.ID
		resp.OrderRecordNumber = out.Order.Number
	}

	log.Printf("[payment_handler] capture-order OK reqId=%s orderId=%s txnId=%s replayed=%t",
		reqID, in.GatewayOrderID, resp.PaymentID, out.Replayed)
	writeJSON(w, http.StatusOK, resp)
}

// ------------------------------------------------------------
// error mapping
// ------------------------------------------------------------

const (
	msgOrderPending   = "Payment received. Your order confirmation is pending; please do not pay again."
	msgIntegrityHold  = "Payment received. Your order is under review; please do not pay again."
	msgProcessing     = "Payment is still processing; please do not pay again."
	msgNotCompleted   = "The payment was not completed. No funds were captured."
	msgGatewayAuth    = "payment gateway authentication failed"
	msgGatewayOrder   = "payment gateway order creation failed"
	msgInternalServer = "internal server error"
	msgShuttingDown   = "server is shutting down; please retry"
)

// writeCheckoutError maps the error taxonomy to HTTP.
// A captured-but-unrecorded payment is 202, never a generic failure.
func writeCheckoutError(w http.ResponseWriter, err error, reconciliationRef string) {
	var (
		ve *paymentdom.ValidationError
		ae *paymentdom.AuthError
		ge *paymentdom.GatewayOrderError
		ce *paymentdom.CaptureNotCompletedError
		ie *paymentdom.IntegrityError
		oe *paymentdom.OrderRecordingError
	)

	switch {
	case errors.As(err, &ie):
		ref := reconciliationRef
		if ref == "" {
			ref = ie.TransactionID
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success":           false,
			"code":              "payment_captured_integrity_hold",
			"message":           msgIntegrityHold,
			"reconciliationRef": ref,
		})
	case errors.As(err, &oe):
		ref := reconciliationRef
		if ref == "" {
			ref = oe.TransactionID
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success":           false,
			"code":              "payment_captured_order_pending",
			"message":           msgOrderPending,
			"reconciliationRef": ref,
		})
	case errors.As(err, &ce):
		status := ce.CaptureStatus
		if status == "" {
			status = ce.Status
		}
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"success": false,
			"code":    "capture_not_completed",
			"message": msgNotCompleted,
			"status":  status,
		})
	case errors.As(err, &ge):
		body := map[string]any{
			"error":  msgGatewayOrder,
			"code":   "gateway_order_failed",
			"detail": errorDetail(ge.Err),
		}
		if ge.DebugID != "" {
			body["debugId"] = ge.DebugID
		}
		writeJSON(w, http.StatusInternalServerError, body)
	case errors.As(err, &ae):
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  msgGatewayAuth,
			"code":   "gateway_auth_failed",
			"detail": errorDetail(ae.Err),
		})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": ve.Error(),
			"code":  "invalid_request",
			"field": ve.Field,
		})
	case errors.Is(err, usecase.ErrCaptureClosed):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": msgShuttingDown,
			"code":  "service_unavailable",
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// the capture keeps running detached; the ledger will account for it
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": false,
			"code":    "payment_processing",
			"message": msgProcessing,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": msgInternalServer,
			"code":  "internal_error",
		})
	}
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return headString([]byte(err.Error()), 300)
}
