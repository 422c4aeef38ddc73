// backend/internal/platform/di/shared/stores.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"log"

	outdb "storefront/internal/adapters/out/db"
	outfs "storefront/internal/adapters/out/firestore"
	orderdom "storefront/internal/domain/order"
	paymentdom "storefront/internal/domain/payment"
	recondom "storefront/internal/domain/reconciliation"
)

// Stores are the three durable stores behind checkout, all on one backend.
type Stores struct {
	Ledger  recondom.LedgerPort
	Orders  orderdom.IndexRepository
	Intents paymentdom.IntentRepository
}

// BuildStores picks Firestore or Postgres (LEDGER_BACKEND).
// For Postgres the schema is created if missing.
func BuildStores(ctx context.Context, infra *Infra) (Stores, error) {
	if infra == nil {
		return Stores{}, errors.New("shared.stores: infra is nil")
	}

	if infra.SQL != nil && infra.SQL.Client != nil {
		if err := outdb.EnsureSchema(ctx, infra.SQL.Client); err != nil {
			return Stores{}, fmt.Errorf("shared.stores: ensure schema: %w", err)
		}
		log.Printf("[shared.stores] backend=postgres")
		return Stores{
			Ledger:  outdb.NewReconciliationRepositoryPG(infra.SQL.Client),
			Orders:  outdb.NewOrderRepositoryPG(infra.SQL.Client),
			Intents: outdb.NewPaymentRepositoryPG(infra.SQL.Client),
		}, nil
	}

	if infra.Firestore == nil {
		return Stores{}, errors.New("shared.stores: neither postgres nor firestore is initialized")
	}
	log.Printf("[shared.stores] backend=firestore project=%s", infra.ProjectID)
	return Stores{
		Ledger:  outfs.NewReconciliationRepositoryFS(infra.Firestore),
		Orders:  outfs.NewOrderRepositoryFS(infra.Firestore),
		Intents: outfs.NewPaymentRepositoryFS(infra.Firestore),
	}, nil
}
