// backend/internal/adapters/in/http/router.go
package httpin

import (
	"net/http"

	"storefront/internal/adapters/in/http/console"
	"storefront/internal/adapters/in/http/mall"
)

// RouterDeps collects the route sets injected from main.go.
type RouterDeps struct {
	Mall    mall.Deps
	Console console.Deps
}

// NewRouter sets up HTTP routing.
func NewRouter(deps RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check (always on)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mall.Register(mux, deps.Mall)
	console.Register(mux, deps.Console)

	return mux
}
