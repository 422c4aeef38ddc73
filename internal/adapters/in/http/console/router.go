// backend/internal/adapters/in/http/console/router.go
package console

import (
	"net/http"

	consoleHandler "storefront/internal/adapters/in/http/console/handler"
	"storefront/internal/adapters/in/http/middleware"
)

// Deps is the operator (console) handler set.
type Deps struct {
	Reconciliation consoleHandler.ReconciliationReader

	// Firebase ID token verification for operators
	Verifier       middleware.IDTokenVerifier
	OperatorEmails []string
}

// Register mounts operator routes under /admin.
// Without a verifier the routes answer 503 instead of being served unauthenticated.
func Register(mux *http.ServeMux, deps Deps) {
	if mux == nil {
		return
	}

	authMw := &middleware.OperatorAuthMiddleware{
		Verifier:      deps.Verifier,
		AllowedEmails: deps.OperatorEmails,
	}

	if deps.Reconciliation != nil {
		var h http.Handler = consoleHandler.NewReconciliationHandler(deps.Reconciliation)
		h = authMw.Handler(h)
		mux.Handle("/admin/reconciliation", h)
		mux.Handle("/admin/reconciliation/", h)
	}
}
