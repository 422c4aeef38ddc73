// backend/internal/adapters/in/http/mall/router.go
package mall

import (
	"log"
	"net/http"
)

// Deps is the buyer-facing (mall) handler set.
type Deps struct {
	Payment http.Handler

	// optional; wraps the checkout endpoints (per-IP rate limit)
	CheckoutLimiter func(http.Handler) http.Handler
}

// handleSafe registers pattern with h.
// If h is nil, it logs and registers NotFoundHandler instead (so Cloud Run won't crash).
func handleSafe(mux *http.ServeMux, pattern string, h http.Handler, name string) {
	if h == nil {
		log.Printf("[mall.router] WARN: nil handler: %s pattern=%s (registering NotFoundHandler)", name, pattern)
		h = http.NotFoundHandler()
	}
	mux.Handle(pattern, h)
}

// Register registers buyer-facing routes onto mux.
func Register(mux *http.ServeMux, deps Deps) {
	if mux == nil {
		return
	}

	payment := deps.Payment
	if payment != nil && deps.CheckoutLimiter != nil {
		payment = deps.CheckoutLimiter(payment)
	}

	// payment (storefront calls both the bare and the /mall prefixed form)
	handleSafe(mux, "/payment/create-order", payment, "Payment(create)")
	handleSafe(mux, "/payment/capture-order", payment, "Payment(capture)")
	handleSafe(mux, "/mall/payment/create-order", payment, "Payment(create)")
	handleSafe(mux, "/mall/payment/capture-order", payment, "Payment(capture)")
}
