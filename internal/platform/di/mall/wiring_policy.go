// backend/internal/platform/di/mall/wiring_policy.go
package mall

import (
	"net/http"

	"storefront/internal/adapters/in/http/middleware"
	outmail "storefront/internal/adapters/out/mail"
	usecase "storefront/internal/application/usecase"
	shared "storefront/internal/platform/di/shared"
)

// wiring_policy.go decides whether optional features are "enabled" based on
// runtime settings and builds their lightweight deps.

// buildReconciliationNotifier: SendGrid alert mail when key/from/to are all set.
// Otherwise nil (alerts disabled; the ledger is still written).
func buildReconciliationNotifier(s shared.RuntimeSettings) usecase.ReconciliationNotifier {
	if !s.AlertsEnabled() {
		return nil
	}
	return outmail.NewReconciliationMailerWithSendGrid(s.SendGridAPIKey, s.SendGridFrom, s.AlertTo)
}

// buildCheckoutLimiter: per-IP limit on the checkout endpoints; nil when RPS is 0.
func buildCheckoutLimiter(s shared.RuntimeSettings) func(http.Handler) http.Handler {
	if s.CheckoutRateRPS <= 0 {
		return nil
	}
	return middleware.NewIPRateLimiter(s.CheckoutRateRPS, s.CheckoutRateBurst).Handler
}
