// backend/internal/platform/di/mall/container.go
package mall

import (
	"context"
	"errors"
	"log"

	httpout "storefront/internal/adapters/out/http"
	usecase "storefront/internal/application/usecase"
	shared "storefront/internal/platform/di/shared"
)

// Container is Mall DI container.
// Pure DI: build deps only. No routing branching, no reflection tricks.
type Container struct {
	Infra  *shared.Infra
	Stores shared.Stores

	// outbound clients
	Tokens   *httpout.GatewayTokenProvider
	Gateway  *httpout.GatewayClient
	Commerce *httpout.CommerceClient

	// Usecases (mall-facing)
	PaymentUC *usecase.PaymentUsecase
	OrderUC   *usecase.OrderUsecase
	CaptureUC *usecase.CaptureUsecase
}

// NewContainer wires checkout on top of shared infra.
func NewContainer(ctx context.Context, infra *shared.Infra) (*Container, error) {
	if infra == nil {
		return nil, errors.New("di.mall: infra is nil")
	}
	s := infra.Settings

	stores, err := shared.BuildStores(ctx, infra)
	if err != nil {
		return nil, err
	}

	c := &Container{Infra: infra, Stores: stores}

	// 1) gateway (token cache shared by every request in the process)
	c.Tokens = httpout.NewGatewayTokenProvider(s.GatewayBaseURL, s.GatewayClientID, s.GatewayClientSecret, s.GatewayTimeout)
	c.Gateway = httpout.NewGatewayClient(s.GatewayBaseURL, c.Tokens, s.GatewayTimeout)

	// 2) commerce backend
	c.Commerce = httpout.NewCommerceClient(s.CommerceBaseURL, s.CommerceConsumerKey, s.CommerceConsumerSecret, s.CommerceTimeout)

	// 3) usecases
	c.PaymentUC = usecase.NewPaymentUsecase(c.Gateway, stores.Intents)
	c.OrderUC = usecase.NewOrderUsecase(c.Commerce, stores.Orders)
	c.CaptureUC = usecase.NewCaptureUsecase(c.Tokens, c.Gateway, stores.Intents, c.OrderUC, stores.Ledger).
		WithCaptureTimeout(s.CaptureTimeout)

	if n := buildReconciliationNotifier(s); n != nil {
		c.CaptureUC.WithNotifier(n)
		log.Printf("[di.mall] reconciliation alerts enabled to=%s", s.AlertTo)
	}

	log.Printf("[di.mall] container ready gateway=%s commerce=%s ledger=%s",
		s.GatewayBaseURL, s.CommerceBaseURL, s.LedgerBackend)
	return c, nil
}
