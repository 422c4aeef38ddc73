package httpin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/adapters/in/http/console"
	"storefront/internal/adapters/in/http/mall"
)

func TestNewRouter(t *testing.T) {
	limited := 0
	payment := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	mux := NewRouter(RouterDeps{
		Mall: mall.Deps{
			Payment: payment,
			CheckoutLimiter: func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					limited++
					next.ServeHTTP(w, r)
				})
			},
		},
		Console: console.Deps{Reconciliation: nil},
	})

	code := func(method, path string) int {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, code(http.MethodGet, "/healthz"))
	assert.Equal(t, http.StatusTeapot, code(http.MethodPost, "/payment/create-order"))
	assert.Equal(t, http.StatusTeapot, code(http.MethodPost, "/mall/payment/capture-order"))
	assert.Equal(t, 2, limited)
	assert.Equal(t, http.StatusNotFound, code(http.MethodGet, "/admin/reconciliation"))
}

func TestNewRouterNilPaymentHandler(t *testing.T) {
	mux := NewRouter(RouterDeps{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment/capture-order", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
