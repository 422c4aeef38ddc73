// backend/internal/platform/di/console/container.go
package console

import (
	"context"
	"errors"
	"log"

	consolehttp "storefront/internal/adapters/in/http/console"
	outgcs "storefront/internal/adapters/out/gcs"
	usecase "storefront/internal/application/usecase"
	recondom "storefront/internal/domain/reconciliation"
	shared "storefront/internal/platform/di/shared"
)

// Container is the operator-side DI container (admin routes + reconcile CLI).
type Container struct {
	Infra *shared.Infra

	ReconciliationUC *usecase.ReconciliationUsecase
}

// NewContainer builds the reconciliation read side. ledger may be passed in when
// the mall container already built the stores; nil builds them here.
func NewContainer(ctx context.Context, infra *shared.Infra, ledger recondom.LedgerPort) (*Container, error) {
	if infra == nil {
		return nil, errors.New("di.console: infra is nil")
	}
	if ledger == nil {
		stores, err := shared.BuildStores(ctx, infra)
		if err != nil {
			return nil, err
		}
		ledger = stores.Ledger
	}

	uc := usecase.NewReconciliationUsecase(ledger)
	if infra.GCS != nil && infra.Settings.ExportBucket != "" {
		uc.WithExportSink(outgcs.NewReconciliationExportGCS(infra.GCS, infra.Settings.ExportBucket))
	}

	return &Container{Infra: infra, ReconciliationUC: uc}, nil
}

// Deps builds the /admin route set. Without Firebase Auth the routes answer 503.
func Deps(cont *Container) consolehttp.Deps {
	if cont == nil {
		return consolehttp.Deps{}
	}
	deps := consolehttp.Deps{Reconciliation: cont.ReconciliationUC}
	if cont.Infra != nil {
		if cont.Infra.FirebaseAuth != nil {
			deps.Verifier = cont.Infra.FirebaseAuth
		} else {
			log.Printf("[console.register] WARN: FirebaseAuth is nil (/admin routes will return 503)")
		}
		deps.OperatorEmails = cont.Infra.Settings.OperatorEmails
	}
	return deps
}
