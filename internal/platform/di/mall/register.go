// backend/internal/platform/di/mall/register.go
package mall

import (
	"log"
	"net/http"

	mallhttp "storefront/internal/adapters/in/http/mall"
	mallhandler "storefront/internal/adapters/in/http/mall/handler"
)

// Deps builds the mall route set from the container.
// Pure DI: construct handlers and pass into the mall router.
func Deps(cont *Container) mallhttp.Deps {
	if cont == nil {
		log.Printf("[mall.register] WARN: container is nil (payment routes will 404)")
		return mallhttp.Deps{}
	}

	var limiter func(http.Handler) http.Handler
	if cont.Infra != nil {
		limiter = buildCheckoutLimiter(cont.Infra.Settings)
	}

	return mallhttp.Deps{
		Payment:         mallhandler.NewPaymentHandler(cont.PaymentUC, cont.CaptureUC),
		CheckoutLimiter: limiter,
	}
}
