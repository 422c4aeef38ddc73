// backend\internal\adapters\in\http\console\handler\reconciliation_handler.go
package consoleHandler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"storefront/internal/adapters/in/http/middleware"
	usecase "storefront/internal/application/usecase"
	recondom "storefront/internal/domain/reconciliation"
)

// ReconciliationReader is the read side used by the admin endpoints.
type ReconciliationReader interface {
	Get(ctx context.Context, transactionID string) (recondom.Entry, error)
	List(ctx context.Context, filter recondom.Filter, page recondom.Page) (recondom.PageResult, error)
}

// ReconciliationHandler serves:
// - GET /admin/reconciliation?outcome=&limit=&page=&from=&to=
// - GET /admin/reconciliation/{txnId}
type ReconciliationHandler struct {
	uc ReconciliationReader
}

func NewReconciliationHandler(uc ReconciliationReader) http.Handler {
	return &ReconciliationHandler{uc: uc}
}

func (h *ReconciliationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if h == nil || h.uc == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reconciliation_usecase_not_initialized"})
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/admin/reconciliation":
		h.list(w, r)
	case strings.HasPrefix(path, "/admin/reconciliation/"):
		h.get(w, r, strings.TrimPrefix(path, "/admin/reconciliation/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	}
}

type reconciliationListResponse struct {
	Items      []recondom.Entry `json:"items"`
	TotalCount int              `json:"totalCount"`
	TotalPages int              `json:"totalPages"`
	Page       int              `json:"page"`
	PerPage    int              `json:"perPage"`
}

func (h *ReconciliationHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := recondom.Filter{
		Outcome: recondom.Outcome(strings.ToUpper(strings.TrimSpace(q.Get("outcome")))),
	}
	from, ok := parseTimeParam(q.Get("from"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from", "code": "invalid_request"})
		return
	}
	to, ok := parseTimeParam(q.Get("to"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to", "code": "invalid_request"})
		return
	}
	filter.CreatedFrom, filter.CreatedTo = from, to

	page := recondom.Page{
		Number:  parseIntDefault(q.Get("page"), 1),
		PerPage: parseIntDefault(q.Get("limit"), 50),
	}

	res, err := h.uc.List(r.Context(), filter, page)
	if err != nil {
		writeReconciliationErr(w, r, err)
		return
	}

	items := res.Items
	if items == nil {
		items = []recondom.Entry{}
	}
	writeJSON(w, http.StatusOK, reconciliationListResponse{
		Items:      items,
		TotalCount: res.TotalCount,
		TotalPages: res.TotalPages,
		Page:       res.Page,
		PerPage:    res.PerPage,
	})
}

func (h *ReconciliationHandler) get(w http.ResponseWriter, r *http.Request, txnID string) {
	e, err := h.uc.Get(r.Context(), txnID)
	if err != nil {
		writeReconciliationErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func writeReconciliationErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case usecase.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	case errors.Is(err, recondom.ErrInvalidOutcome), errors.Is(err, recondom.ErrInvalidTransactionID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "code": "invalid_request"})
	default:
		log.Printf("[reconciliation_handler] reqId=%s operator=%s err=%v",
			chimw.GetReqID(r.Context()), middleware.CurrentOperatorEmail(r), err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}
